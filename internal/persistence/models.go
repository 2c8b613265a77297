package persistence

import "time"

// PollState is the stored lifecycle state of a poll.
type PollState string

const (
	PollStateOpen   PollState = "open"
	PollStateClosed PollState = "closed"
)

// Poll represents one weekly availability round.
type Poll struct {
	ID          string
	GuildID     string
	ChannelID   string
	State       PollState
	CreatedAt   time.Time
	Deadline    time.Time
	ClosedAt    *time.Time
	CloseReason string
}

// Response is one participant's standing answer for a poll.
type Response struct {
	PollID           string
	ParticipantID    string
	DisplayName      string
	Saturday         bool
	Sunday           bool
	FirstSubmittedAt time.Time
	UpdatedAt        time.Time
}

// GuildConfig stores per-guild scheduling settings. Weekday and clock values
// are kept in their configuration form ("18:00").
type GuildConfig struct {
	GuildID             string
	SchedulingChannelID string
	PollWeekday         time.Weekday
	PollTime            string
	DeadlineWeekday     time.Weekday
	DeadlineTime        string
	ReminderIntervals   []time.Duration
	ReminderMode        string
	MinParticipants     int
	TrackedRoleID       string
	DefaultTimezone     string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TimezonePreference is a participant's zone and delivery override.
type TimezonePreference struct {
	GuildID         string
	ParticipantID   string
	Zone            string
	DirectReminders bool
	UpdatedAt       time.Time
}

// ReminderMark records that a reminder interval fired for a participant.
type ReminderMark struct {
	PollID        string
	ParticipantID string
	IntervalIndex int
	FiredAt       time.Time
}
