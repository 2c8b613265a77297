package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// PollRepository implements persistence.PollRepository using SQLite
type PollRepository struct {
	repository
}

const pollColumns = `id, guild_id, channel_id, state, created_at, deadline, closed_at, close_reason`

// CreatePoll inserts a new poll. The partial unique index on open polls
// rejects a second open poll for the same channel.
func (r *PollRepository) CreatePoll(ctx context.Context, poll persistence.Poll) error {
	if poll.ID == "" || poll.ChannelID == "" {
		return persistence.ErrConstraintViolation
	}
	if poll.State == "" {
		poll.State = persistence.PollStateOpen
	}

	var closedAt sql.NullString
	if poll.ClosedAt != nil {
		closedAt = sql.NullString{String: formatTime(*poll.ClosedAt), Valid: true}
	}

	query := `
		INSERT INTO polls (` + pollColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			poll.ID,
			poll.GuildID,
			poll.ChannelID,
			string(poll.State),
			formatTime(poll.CreatedAt),
			formatTime(poll.Deadline),
			closedAt,
			nullableString(poll.CloseReason),
		)
		return err
	})
}

// GetPoll retrieves a poll by ID from the database
func (r *PollRepository) GetPoll(ctx context.Context, id string) (persistence.Poll, error) {
	if id == "" {
		return persistence.Poll{}, persistence.ErrNotFound
	}
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id)
	return r.scanOne(row)
}

// GetOpenPollForChannel returns the channel's open poll.
func (r *PollRepository) GetOpenPollForChannel(ctx context.Context, channelID string) (persistence.Poll, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT `+pollColumns+` FROM polls WHERE channel_id = ? AND state = 'open'`, channelID)
	return r.scanOne(row)
}

// LatestPollForChannel returns the most recently created poll for a channel.
func (r *PollRepository) LatestPollForChannel(ctx context.Context, channelID string) (persistence.Poll, error) {
	row := r.pool.DB().QueryRowContext(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE channel_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, channelID)
	return r.scanOne(row)
}

// ListOpenPolls returns every open poll ordered by creation.
func (r *PollRepository) ListOpenPolls(ctx context.Context) ([]persistence.Poll, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+pollColumns+` FROM polls
		WHERE state = 'open'
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var polls []persistence.Poll
	for rows.Next() {
		poll, err := scanPoll(rows)
		if err != nil {
			return nil, err
		}
		polls = append(polls, poll)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return polls, nil
}

// ClosePoll performs the conditional open to closed transition and discards
// the poll's reminder marks in the same transaction.
func (r *PollRepository) ClosePoll(ctx context.Context, id string, closedAt time.Time, reason string) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx, `
				UPDATE polls
				SET state = 'closed', closed_at = ?, close_reason = ?
				WHERE id = ? AND state = 'open'
			`, formatTime(closedAt), nullableString(reason), id)
			if err != nil {
				return err
			}

			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if affected == 0 {
				var state string
				err := tx.QueryRowContext(ctx, `SELECT state FROM polls WHERE id = ?`, id).Scan(&state)
				if errors.Is(err, sql.ErrNoRows) {
					return persistence.ErrNotFound
				}
				if err != nil {
					return err
				}
				return persistence.ErrPollNotOpen
			}

			_, err = tx.ExecContext(ctx, `DELETE FROM reminder_marks WHERE poll_id = ?`, id)
			return err
		})
	})
}

func (r *PollRepository) scanOne(row *sql.Row) (persistence.Poll, error) {
	poll, err := scanPoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Poll{}, persistence.ErrNotFound
		}
		return persistence.Poll{}, r.mapper.MapError(err)
	}
	return poll, nil
}

func scanPoll(row rowScanner) (persistence.Poll, error) {
	var (
		poll                  persistence.Poll
		state                 string
		createdAt, deadline   string
		closedAt, closeReason sql.NullString
	)
	if err := row.Scan(&poll.ID, &poll.GuildID, &poll.ChannelID, &state, &createdAt, &deadline, &closedAt, &closeReason); err != nil {
		return persistence.Poll{}, err
	}

	poll.State = persistence.PollState(state)
	var err error
	if poll.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Poll{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if poll.Deadline, err = parseTime(deadline); err != nil {
		return persistence.Poll{}, fmt.Errorf("failed to parse deadline: %w", err)
	}
	if closedAt.Valid {
		t, err := parseTime(closedAt.String)
		if err != nil {
			return persistence.Poll{}, fmt.Errorf("failed to parse closed_at: %w", err)
		}
		poll.ClosedAt = &t
	}
	if closeReason.Valid {
		poll.CloseReason = closeReason.String
	}
	return poll, nil
}
