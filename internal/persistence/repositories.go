package persistence

import (
	"context"
	"time"
)

// PollRepository stores polls and answers the lifecycle queries.
type PollRepository interface {
	// CreatePoll inserts a poll. ErrDuplicate is returned if the channel
	// already has an open poll.
	CreatePoll(ctx context.Context, poll Poll) error
	GetPoll(ctx context.Context, id string) (Poll, error)
	GetOpenPollForChannel(ctx context.Context, channelID string) (Poll, error)
	// LatestPollForChannel returns the most recently created poll in any state.
	LatestPollForChannel(ctx context.Context, channelID string) (Poll, error)
	// ListOpenPolls returns open polls ordered by creation time.
	ListOpenPolls(ctx context.Context) ([]Poll, error)
	// ClosePoll moves an open poll to closed and discards its reminder marks
	// atomically. ErrPollNotOpen is returned if the poll is already closed.
	ClosePoll(ctx context.Context, id string, closedAt time.Time, reason string) error
}

// ResponseRepository stores poll responses.
type ResponseRepository interface {
	// UpsertResponse stores the response unless the stored one is newer. The
	// first submission instant of an existing row is preserved. It reports
	// whether the write was applied and fails with ErrNotFound for unknown
	// polls and ErrPollNotOpen for closed ones.
	UpsertResponse(ctx context.Context, response Response) (bool, error)
	// DeleteResponse removes a response and reports whether one existed.
	DeleteResponse(ctx context.Context, pollID, participantID string) (bool, error)
	// ListResponses returns responses ordered by first submission.
	ListResponses(ctx context.Context, pollID string) ([]Response, error)
}

// GuildConfigRepository stores guild settings.
type GuildConfigRepository interface {
	GetGuildConfig(ctx context.Context, guildID string) (GuildConfig, error)
	SaveGuildConfig(ctx context.Context, config GuildConfig) error
	ListGuildConfigs(ctx context.Context) ([]GuildConfig, error)
}

// PreferenceRepository stores participant timezone preferences.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, guildID, participantID string) (TimezonePreference, error)
	SavePreference(ctx context.Context, pref TimezonePreference) error
	DeletePreference(ctx context.Context, guildID, participantID string) (bool, error)
	ListPreferences(ctx context.Context, guildID string) ([]TimezonePreference, error)
}

// ReminderRepository stores reminder interval markers.
type ReminderRepository interface {
	// ClaimReminder records the mark if absent and reports whether this call
	// created it.
	ClaimReminder(ctx context.Context, mark ReminderMark) (bool, error)
	ListReminderMarks(ctx context.Context, pollID string) ([]ReminderMark, error)
}

// Store bundles every repository with lifecycle hooks.
type Store interface {
	PollRepository
	ResponseRepository
	GuildConfigRepository
	PreferenceRepository
	ReminderRepository

	Ping(ctx context.Context) error
	Close() error
}
