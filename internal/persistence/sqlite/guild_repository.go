package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// GuildConfigRepository implements persistence.GuildConfigRepository using SQLite
type GuildConfigRepository struct {
	repository
}

const guildColumns = `guild_id, scheduling_channel_id, poll_weekday, poll_time, deadline_weekday, deadline_time,
	reminder_intervals, reminder_mode, min_participants, tracked_role_id, default_timezone, created_at, updated_at`

// SaveGuildConfig inserts or replaces a guild configuration, keeping the
// original creation instant.
func (r *GuildConfigRepository) SaveGuildConfig(ctx context.Context, config persistence.GuildConfig) error {
	if config.GuildID == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO guild_configs (`+guildColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (guild_id) DO UPDATE SET
				scheduling_channel_id = excluded.scheduling_channel_id,
				poll_weekday = excluded.poll_weekday,
				poll_time = excluded.poll_time,
				deadline_weekday = excluded.deadline_weekday,
				deadline_time = excluded.deadline_time,
				reminder_intervals = excluded.reminder_intervals,
				reminder_mode = excluded.reminder_mode,
				min_participants = excluded.min_participants,
				tracked_role_id = excluded.tracked_role_id,
				default_timezone = excluded.default_timezone,
				updated_at = excluded.updated_at
		`,
			config.GuildID,
			nullableString(config.SchedulingChannelID),
			int(config.PollWeekday),
			config.PollTime,
			int(config.DeadlineWeekday),
			config.DeadlineTime,
			encodeIntervals(config.ReminderIntervals),
			config.ReminderMode,
			config.MinParticipants,
			nullableString(config.TrackedRoleID),
			config.DefaultTimezone,
			formatTime(config.CreatedAt),
			formatTime(config.UpdatedAt),
		)
		return err
	})
}

// GetGuildConfig retrieves a guild configuration.
func (r *GuildConfigRepository) GetGuildConfig(ctx context.Context, guildID string) (persistence.GuildConfig, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+guildColumns+` FROM guild_configs WHERE guild_id = ?`, guildID)
	config, err := scanGuildConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.GuildConfig{}, persistence.ErrNotFound
		}
		return persistence.GuildConfig{}, r.mapper.MapError(err)
	}
	return config, nil
}

// ListGuildConfigs returns every guild configuration ordered by guild.
func (r *GuildConfigRepository) ListGuildConfigs(ctx context.Context) ([]persistence.GuildConfig, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `SELECT `+guildColumns+` FROM guild_configs ORDER BY guild_id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var configs []persistence.GuildConfig
	for rows.Next() {
		config, err := scanGuildConfig(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return configs, nil
}

func scanGuildConfig(row rowScanner) (persistence.GuildConfig, error) {
	var (
		config                   persistence.GuildConfig
		channel, role            sql.NullString
		pollWeekday, deadlineDay int
		intervals                string
		createdAt, updatedAt     string
	)
	if err := row.Scan(
		&config.GuildID,
		&channel,
		&pollWeekday,
		&config.PollTime,
		&deadlineDay,
		&config.DeadlineTime,
		&intervals,
		&config.ReminderMode,
		&config.MinParticipants,
		&role,
		&config.DefaultTimezone,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.GuildConfig{}, err
	}

	config.SchedulingChannelID = channel.String
	config.TrackedRoleID = role.String
	config.PollWeekday = time.Weekday(pollWeekday)
	config.DeadlineWeekday = time.Weekday(deadlineDay)

	var err error
	if config.ReminderIntervals, err = decodeIntervals(intervals); err != nil {
		return persistence.GuildConfig{}, err
	}
	if config.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.GuildConfig{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if config.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.GuildConfig{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return config, nil
}

// encodeIntervals stores durations as a comma separated list such as "24h0m0s,48h0m0s".
func encodeIntervals(intervals []time.Duration) string {
	parts := make([]string, 0, len(intervals))
	for _, d := range intervals {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, ",")
}

func decodeIntervals(value string) ([]time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	intervals := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("failed to parse reminder interval %q: %w", part, err)
		}
		intervals = append(intervals, d)
	}
	return intervals, nil
}
