package sqlite

import (
	"context"
	"fmt"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// ReminderRepository implements persistence.ReminderRepository using SQLite
type ReminderRepository struct {
	repository
}

// ClaimReminder inserts the mark unless it already exists. Only the caller
// whose insert lands gets true, so concurrent ticks cannot both fire.
func (r *ReminderRepository) ClaimReminder(ctx context.Context, mark persistence.ReminderMark) (bool, error) {
	if mark.PollID == "" || mark.IntervalIndex < 0 {
		return false, persistence.ErrConstraintViolation
	}

	var claimed bool
	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `
			INSERT OR IGNORE INTO reminder_marks (poll_id, participant_id, interval_index, fired_at)
			VALUES (?, ?, ?, ?)
		`, mark.PollID, mark.ParticipantID, mark.IntervalIndex, formatTime(mark.FiredAt))
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		claimed = affected == 1
		return nil
	})
	return claimed, err
}

// ListReminderMarks returns a poll's marks ordered by participant and interval.
func (r *ReminderRepository) ListReminderMarks(ctx context.Context, pollID string) ([]persistence.ReminderMark, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT poll_id, participant_id, interval_index, fired_at
		FROM reminder_marks
		WHERE poll_id = ?
		ORDER BY participant_id ASC, interval_index ASC
	`, pollID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var marks []persistence.ReminderMark
	for rows.Next() {
		var (
			mark  persistence.ReminderMark
			fired string
		)
		if err := rows.Scan(&mark.PollID, &mark.ParticipantID, &mark.IntervalIndex, &fired); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if mark.FiredAt, err = parseTime(fired); err != nil {
			return nil, fmt.Errorf("failed to parse fired_at: %w", err)
		}
		marks = append(marks, mark)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return marks, nil
}
