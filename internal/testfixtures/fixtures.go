package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
)

var (
	pollCounter     uint64
	responseCounter uint64
)

// referenceTime is Monday 10:00 UTC, the default weekly poll slot.
var referenceTime = time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDeadline returns the Wednesday 18:00 UTC deadline that follows
// ReferenceTime under the default guild settings.
func ReferenceDeadline() time.Time {
	return time.Date(2024, time.June, 5, 18, 0, 0, 0, time.UTC)
}

// ----------------------------- Poll fixtures -----------------------------

// PollOption configures the generated poll.
type PollOption func(*persistence.Poll)

// NewPoll returns an open poll record with unique ID and channel.
func NewPoll(opts ...PollOption) persistence.Poll {
	idx := atomic.AddUint64(&pollCounter, 1)
	poll := persistence.Poll{
		ID:        fmt.Sprintf("poll-%03d", idx),
		GuildID:   "guild-1",
		ChannelID: fmt.Sprintf("channel-%03d", idx),
		State:     persistence.PollStateOpen,
		CreatedAt: referenceTime,
		Deadline:  ReferenceDeadline(),
	}
	for _, opt := range opts {
		opt(&poll)
	}
	return poll
}

// WithPollID overrides the generated poll ID.
func WithPollID(id string) PollOption {
	return func(p *persistence.Poll) {
		p.ID = id
	}
}

// WithPollGuild overrides the guild.
func WithPollGuild(guildID string) PollOption {
	return func(p *persistence.Poll) {
		p.GuildID = guildID
	}
}

// WithPollChannel overrides the generated channel.
func WithPollChannel(channelID string) PollOption {
	return func(p *persistence.Poll) {
		p.ChannelID = channelID
	}
}

// WithPollTimes sets the creation and deadline instants.
func WithPollTimes(createdAt, deadline time.Time) PollOption {
	return func(p *persistence.Poll) {
		p.CreatedAt = createdAt
		p.Deadline = deadline
	}
}

// WithPollClosed marks the poll closed at closedAt.
func WithPollClosed(closedAt time.Time, reason string) PollOption {
	return func(p *persistence.Poll) {
		p.State = persistence.PollStateClosed
		closed := closedAt
		p.ClosedAt = &closed
		p.CloseReason = reason
	}
}

// --------------------------- Response fixtures ---------------------------

// ResponseOption configures the generated response.
type ResponseOption func(*persistence.Response)

// NewResponse returns a response for pollID from a unique participant.
func NewResponse(pollID string, opts ...ResponseOption) persistence.Response {
	idx := atomic.AddUint64(&responseCounter, 1)
	submitted := referenceTime.Add(time.Duration(idx) * time.Minute)
	resp := persistence.Response{
		PollID:           pollID,
		ParticipantID:    fmt.Sprintf("participant-%03d", idx),
		DisplayName:      fmt.Sprintf("Participant %03d", idx),
		FirstSubmittedAt: submitted,
		UpdatedAt:        submitted,
	}
	for _, opt := range opts {
		opt(&resp)
	}
	return resp
}

// WithParticipant overrides the participant ID and display name.
func WithParticipant(id, name string) ResponseOption {
	return func(r *persistence.Response) {
		r.ParticipantID = id
		r.DisplayName = name
	}
}

// WithAvailability sets both day flags.
func WithAvailability(saturday, sunday bool) ResponseOption {
	return func(r *persistence.Response) {
		r.Saturday = saturday
		r.Sunday = sunday
	}
}

// WithSubmittedAt sets both the first and last submission instants.
func WithSubmittedAt(t time.Time) ResponseOption {
	return func(r *persistence.Response) {
		r.FirstSubmittedAt = t
		r.UpdatedAt = t
	}
}

// WithUpdatedAt sets only the last submission instant.
func WithUpdatedAt(t time.Time) ResponseOption {
	return func(r *persistence.Response) {
		r.UpdatedAt = t
	}
}

// ------------------------- Guild config fixtures -------------------------

// GuildConfigOption configures the generated guild config.
type GuildConfigOption func(*persistence.GuildConfig)

// NewGuildConfig returns a config carrying the default guild settings.
func NewGuildConfig(guildID string, opts ...GuildConfigOption) persistence.GuildConfig {
	config := persistence.GuildConfig{
		GuildID:             guildID,
		SchedulingChannelID: "channel-" + guildID,
		PollWeekday:         time.Monday,
		PollTime:            "10:00",
		DeadlineWeekday:     time.Wednesday,
		DeadlineTime:        "18:00",
		ReminderIntervals:   []time.Duration{24 * time.Hour, 48 * time.Hour},
		ReminderMode:        "channel",
		MinParticipants:     3,
		DefaultTimezone:     "UTC",
		CreatedAt:           referenceTime.Add(-7 * 24 * time.Hour),
		UpdatedAt:           referenceTime.Add(-7 * 24 * time.Hour),
	}
	for _, opt := range opts {
		opt(&config)
	}
	return config
}

// WithSchedulingChannel overrides the channel.
func WithSchedulingChannel(channelID string) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.SchedulingChannelID = channelID
	}
}

// WithReminderIntervals overrides the reminder cadence.
func WithReminderIntervals(intervals ...time.Duration) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.ReminderIntervals = intervals
	}
}

// WithReminderMode overrides the delivery mode.
func WithReminderMode(mode string) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.ReminderMode = mode
	}
}

// WithMinParticipants overrides the threshold.
func WithMinParticipants(n int) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.MinParticipants = n
	}
}

// WithTrackedRole sets the tracked role.
func WithTrackedRole(roleID string) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.TrackedRoleID = roleID
	}
}

// WithDefaultTimezone overrides the guild zone.
func WithDefaultTimezone(zone string) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.DefaultTimezone = zone
	}
}

// WithConfigCreatedAt sets both config timestamps.
func WithConfigCreatedAt(t time.Time) GuildConfigOption {
	return func(c *persistence.GuildConfig) {
		c.CreatedAt = t
		c.UpdatedAt = t
	}
}
