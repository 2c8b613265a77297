package application

import (
	"errors"
	"time"

	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/recurrence"
)

// PollFromRecord converts a stored poll.
func PollFromRecord(p persistence.Poll) Poll {
	poll := Poll{
		ID:          p.ID,
		GuildID:     p.GuildID,
		ChannelID:   p.ChannelID,
		State:       PollState(p.State),
		CreatedAt:   p.CreatedAt,
		Deadline:    p.Deadline,
		CloseReason: CloseReason(p.CloseReason),
	}
	if p.ClosedAt != nil {
		closed := *p.ClosedAt
		poll.ClosedAt = &closed
	}
	return poll
}

func toPollRecord(p Poll) persistence.Poll {
	record := persistence.Poll{
		ID:          p.ID,
		GuildID:     p.GuildID,
		ChannelID:   p.ChannelID,
		State:       persistence.PollState(p.State),
		CreatedAt:   p.CreatedAt,
		Deadline:    p.Deadline,
		CloseReason: string(p.CloseReason),
	}
	if p.ClosedAt != nil {
		closed := *p.ClosedAt
		record.ClosedAt = &closed
	}
	return record
}

// ResponseFromRecord converts a stored response.
func ResponseFromRecord(r persistence.Response) Response {
	return Response{
		PollID:           r.PollID,
		ParticipantID:    r.ParticipantID,
		DisplayName:      r.DisplayName,
		Saturday:         r.Saturday,
		Sunday:           r.Sunday,
		FirstSubmittedAt: r.FirstSubmittedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func responsesFromRecords(records []persistence.Response) []Response {
	if len(records) == 0 {
		return nil
	}
	out := make([]Response, len(records))
	for i, r := range records {
		out[i] = ResponseFromRecord(r)
	}
	return out
}

func feasibilityInputs(responses []Response) []feasibility.Response {
	out := make([]feasibility.Response, len(responses))
	for i, r := range responses {
		out[i] = feasibility.Response{
			ParticipantID: r.ParticipantID,
			Label:         r.DisplayName,
			Saturday:      r.Saturday,
			Sunday:        r.Sunday,
		}
	}
	return out
}

// GuildConfigFromRecord converts a stored configuration. Clock strings that
// fail to parse fall back to midnight; they are validated on write.
func GuildConfigFromRecord(c persistence.GuildConfig) GuildConfig {
	pollTime, _ := recurrence.ParseClock(c.PollTime)
	deadlineTime, _ := recurrence.ParseClock(c.DeadlineTime)
	intervals := make([]time.Duration, len(c.ReminderIntervals))
	copy(intervals, c.ReminderIntervals)
	return GuildConfig{
		GuildID:             c.GuildID,
		SchedulingChannelID: c.SchedulingChannelID,
		PollDay:             c.PollWeekday,
		PollTime:            pollTime,
		DeadlineDay:         c.DeadlineWeekday,
		DeadlineTime:        deadlineTime,
		ReminderIntervals:   intervals,
		ReminderMode:        ReminderMode(c.ReminderMode),
		MinParticipants:     c.MinParticipants,
		TrackedRoleID:       c.TrackedRoleID,
		DefaultTimezone:     c.DefaultTimezone,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

func toGuildConfigRecord(c GuildConfig) persistence.GuildConfig {
	intervals := make([]time.Duration, len(c.ReminderIntervals))
	copy(intervals, c.ReminderIntervals)
	return persistence.GuildConfig{
		GuildID:             c.GuildID,
		SchedulingChannelID: c.SchedulingChannelID,
		PollWeekday:         c.PollDay,
		PollTime:            c.PollTime.String(),
		DeadlineWeekday:     c.DeadlineDay,
		DeadlineTime:        c.DeadlineTime.String(),
		ReminderIntervals:   intervals,
		ReminderMode:        string(c.ReminderMode),
		MinParticipants:     c.MinParticipants,
		TrackedRoleID:       c.TrackedRoleID,
		DefaultTimezone:     c.DefaultTimezone,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}

// PreferenceFromRecord converts a stored preference.
func PreferenceFromRecord(p persistence.TimezonePreference) TimezonePreference {
	return TimezonePreference{
		GuildID:         p.GuildID,
		ParticipantID:   p.ParticipantID,
		Zone:            p.Zone,
		DirectReminders: p.DirectReminders,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toPreferenceRecord(p TimezonePreference) persistence.TimezonePreference {
	return persistence.TimezonePreference{
		GuildID:         p.GuildID,
		ParticipantID:   p.ParticipantID,
		Zone:            p.Zone,
		DirectReminders: p.DirectReminders,
		UpdatedAt:       p.UpdatedAt,
	}
}

// mapPollRepoError translates persistence failures on poll writes.
func mapPollRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, persistence.ErrPollNotOpen):
		return ErrAlreadyClosed
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("deadline", "deadline must be after creation")
		return vErr
	}
	return err
}

// mapResponseRepoError translates persistence failures on response writes.
func mapResponseRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrPollNotOpen):
		return ErrPollClosed
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("participant_id", "participant is required")
		return vErr
	}
	return err
}

// mapSettingsRepoError translates persistence failures on config and
// preference access.
func mapSettingsRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
