package application

import (
	"time"

	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/recommendation"
	"github.com/example/weekend-scheduler/internal/recurrence"
)

// PollState is the lifecycle state of a poll. Open is initial and Closed is
// terminal.
type PollState string

const (
	PollStateOpen   PollState = "open"
	PollStateClosed PollState = "closed"
)

// CloseReason records which trigger closed a poll.
type CloseReason string

const (
	CloseReasonManual   CloseReason = "manual"
	CloseReasonDeadline CloseReason = "deadline"
	CloseReasonPurged   CloseReason = "purged"
)

// ReminderMode selects where reminders are delivered.
type ReminderMode string

const (
	ReminderModeChannel ReminderMode = "channel"
	ReminderModeDirect  ReminderMode = "direct"
)

// Valid reports whether the mode is known.
func (m ReminderMode) Valid() bool {
	return m == ReminderModeChannel || m == ReminderModeDirect
}

// BroadcastParticipant is the participant key used for channel wide
// reminders when no roster is tracked.
const BroadcastParticipant = "*"

// Poll is one weekly availability round.
type Poll struct {
	ID          string
	GuildID     string
	ChannelID   string
	State       PollState
	CreatedAt   time.Time
	Deadline    time.Time
	ClosedAt    *time.Time
	CloseReason CloseReason
}

// IsOpen reports whether the poll still accepts responses.
func (p Poll) IsOpen() bool {
	return p.State == PollStateOpen
}

// Response is a participant's standing answer.
type Response struct {
	PollID           string
	ParticipantID    string
	DisplayName      string
	Saturday         bool
	Sunday           bool
	FirstSubmittedAt time.Time
	UpdatedAt        time.Time
}

// GuildConfig holds the scheduling settings of one guild.
type GuildConfig struct {
	GuildID             string
	SchedulingChannelID string
	PollDay             time.Weekday
	PollTime            recurrence.Clock
	DeadlineDay         time.Weekday
	DeadlineTime        recurrence.Clock
	ReminderIntervals   []time.Duration
	ReminderMode        ReminderMode
	MinParticipants     int
	TrackedRoleID       string
	DefaultTimezone     string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PollSlot is the weekly slot at which polls are opened.
func (c GuildConfig) PollSlot() recurrence.Slot {
	return recurrence.Slot{Weekday: c.PollDay, Clock: c.PollTime}
}

// DeadlineSlot is the weekly slot at which polls close.
func (c GuildConfig) DeadlineSlot() recurrence.Slot {
	return recurrence.Slot{Weekday: c.DeadlineDay, Clock: c.DeadlineTime}
}

// GuildDefaults seeds new guild configurations.
type GuildDefaults struct {
	PollDay           time.Weekday
	PollTime          recurrence.Clock
	DeadlineDay       time.Weekday
	DeadlineTime      recurrence.Clock
	ReminderIntervals []time.Duration
	ReminderMode      ReminderMode
	MinParticipants   int
	Timezone          string
}

// DefaultGuildDefaults returns Monday 10:00 polls closing Wednesday 18:00,
// reminders after 24h and 48h in the channel, and a threshold of three.
func DefaultGuildDefaults(zone string) GuildDefaults {
	if zone == "" {
		zone = "UTC"
	}
	return GuildDefaults{
		PollDay:           time.Monday,
		PollTime:          recurrence.Clock{Hour: 10},
		DeadlineDay:       time.Wednesday,
		DeadlineTime:      recurrence.Clock{Hour: 18},
		ReminderIntervals: []time.Duration{24 * time.Hour, 48 * time.Hour},
		ReminderMode:      ReminderModeChannel,
		MinParticipants:   3,
		Timezone:          zone,
	}
}

// Config materialises the defaults for a guild.
func (d GuildDefaults) Config(guildID string, now time.Time) GuildConfig {
	intervals := make([]time.Duration, len(d.ReminderIntervals))
	copy(intervals, d.ReminderIntervals)
	return GuildConfig{
		GuildID:           guildID,
		PollDay:           d.PollDay,
		PollTime:          d.PollTime,
		DeadlineDay:       d.DeadlineDay,
		DeadlineTime:      d.DeadlineTime,
		ReminderIntervals: intervals,
		ReminderMode:      d.ReminderMode,
		MinParticipants:   d.MinParticipants,
		DefaultTimezone:   d.Timezone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ConfigPatch lists the fields an admin may change. Nil fields are left
// untouched; an empty TrackedRoleID clears the role and an empty non-nil
// ReminderIntervals disables reminders.
type ConfigPatch struct {
	SchedulingChannelID *string
	PollDay             *string
	PollTime            *string
	DeadlineDay         *string
	DeadlineTime        *string
	ReminderIntervals   []string
	ReminderMode        *string
	MinParticipants     *int
	TrackedRoleID       *string
	DefaultTimezone     *string
}

// TimezonePreference is a participant's zone and delivery override.
type TimezonePreference struct {
	GuildID         string
	ParticipantID   string
	Zone            string
	DirectReminders bool
	UpdatedAt       time.Time
}

// ZoneDeadline is the poll deadline expressed in one zone in use.
type ZoneDeadline struct {
	Zone         string
	Deadline     time.Time
	Participants []string
}

// PollStatus is the full computed view of a poll.
type PollStatus struct {
	Poll           Poll
	Responses      []Response
	Feasibility    feasibility.Result
	Recommendation recommendation.Recommendation
	// GuildZone and GuildDeadline give the deadline in the guild default zone.
	GuildZone     string
	GuildDeadline time.Time
	// Deadlines has one entry per zone chosen by a participant.
	Deadlines []ZoneDeadline
	// RosterUnavailable is set when a tracked role is configured but the
	// lookup failed, so Feasibility was evaluated without a roster.
	RosterUnavailable bool
}

// Pending returns roster members without a response.
func (s PollStatus) Pending() []string {
	return s.Feasibility.Pending
}

// PollSummary is the final status published when a poll closes.
type PollSummary struct {
	Status PollStatus
	Reason CloseReason
}

// CreatePollParams identifies where to open a poll. An empty ChannelID uses
// the guild's scheduling channel.
type CreatePollParams struct {
	GuildID   string
	ChannelID string
}

// PurgeScope selects which open polls to force close. PollID wins over
// ChannelID; an empty scope matches every open poll.
type PurgeScope struct {
	ChannelID string
	PollID    string
}

// SubmitResponseParams is one complete availability answer. A zero
// SubmittedAt is replaced by the service clock.
type SubmitResponseParams struct {
	PollID        string
	ParticipantID string
	DisplayName   string
	Saturday      bool
	Sunday        bool
	SubmittedAt   time.Time
}

// SubmitResult reports the outcome of a submission.
type SubmitResult struct {
	Response Response
	// Applied is false when a newer submission was already stored.
	Applied bool
	// Count is the number of responses the poll now holds.
	Count int
}

// ReminderIntent asks the delivery layer to nudge a participant. A
// ParticipantID of BroadcastParticipant addresses the whole channel.
type ReminderIntent struct {
	PollID        string
	GuildID       string
	ChannelID     string
	ParticipantID string
	Mode          ReminderMode
	IntervalIndex int
	Deadline      time.Time
	// LocalizedDeadline is set when the participant has a zone preference.
	LocalizedDeadline *time.Time
	Zone              string
	Manual            bool
}

// Broadcast reports whether the intent targets the channel rather than one
// participant.
func (r ReminderIntent) Broadcast() bool {
	return r.ParticipantID == BroadcastParticipant
}
