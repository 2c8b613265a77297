package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// PreferenceRepository implements persistence.PreferenceRepository using SQLite
type PreferenceRepository struct {
	repository
}

// SavePreference inserts or replaces a participant preference.
func (r *PreferenceRepository) SavePreference(ctx context.Context, pref persistence.TimezonePreference) error {
	if pref.GuildID == "" || pref.ParticipantID == "" || pref.Zone == "" {
		return persistence.ErrConstraintViolation
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO timezone_preferences (guild_id, participant_id, zone, direct_reminders, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (guild_id, participant_id) DO UPDATE SET
				zone = excluded.zone,
				direct_reminders = excluded.direct_reminders,
				updated_at = excluded.updated_at
		`, pref.GuildID, pref.ParticipantID, pref.Zone, boolToInt(pref.DirectReminders), formatTime(pref.UpdatedAt))
		return err
	})
}

// GetPreference retrieves one participant's preference.
func (r *PreferenceRepository) GetPreference(ctx context.Context, guildID, participantID string) (persistence.TimezonePreference, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT guild_id, participant_id, zone, direct_reminders, updated_at
		FROM timezone_preferences
		WHERE guild_id = ? AND participant_id = ?
	`, guildID, participantID)
	pref, err := scanPreference(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TimezonePreference{}, persistence.ErrNotFound
		}
		return persistence.TimezonePreference{}, r.mapper.MapError(err)
	}
	return pref, nil
}

// DeletePreference clears a preference and reports whether one existed.
func (r *PreferenceRepository) DeletePreference(ctx context.Context, guildID, participantID string) (bool, error) {
	var deleted bool
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx,
			`DELETE FROM timezone_preferences WHERE guild_id = ? AND participant_id = ?`, guildID, participantID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

// ListPreferences returns a guild's preferences ordered by participant.
func (r *PreferenceRepository) ListPreferences(ctx context.Context, guildID string) ([]persistence.TimezonePreference, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT guild_id, participant_id, zone, direct_reminders, updated_at
		FROM timezone_preferences
		WHERE guild_id = ?
		ORDER BY participant_id ASC
	`, guildID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var prefs []persistence.TimezonePreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		prefs = append(prefs, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return prefs, nil
}

func scanPreference(row rowScanner) (persistence.TimezonePreference, error) {
	var (
		pref    persistence.TimezonePreference
		direct  int
		updated string
	)
	if err := row.Scan(&pref.GuildID, &pref.ParticipantID, &pref.Zone, &direct, &updated); err != nil {
		return persistence.TimezonePreference{}, err
	}
	pref.DirectReminders = direct == 1
	t, err := parseTime(updated)
	if err != nil {
		return persistence.TimezonePreference{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	pref.UpdatedAt = t
	return pref, nil
}
