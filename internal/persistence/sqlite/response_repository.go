package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// ResponseRepository implements persistence.ResponseRepository using SQLite
type ResponseRepository struct {
	repository
}

// UpsertResponse writes the response inside a transaction that first checks
// the poll is still open. The conflict clause keeps whichever submission
// carries the later timestamp.
func (r *ResponseRepository) UpsertResponse(ctx context.Context, response persistence.Response) (bool, error) {
	if response.PollID == "" || response.ParticipantID == "" {
		return false, persistence.ErrConstraintViolation
	}
	first := response.FirstSubmittedAt
	if first.IsZero() {
		first = response.UpdatedAt
	}

	var applied bool
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := requireOpenPoll(ctx, tx, response.PollID); err != nil {
				return err
			}

			result, err := tx.ExecContext(ctx, `
				INSERT INTO responses (poll_id, participant_id, display_name, saturday, sunday, first_submitted_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (poll_id, participant_id) DO UPDATE SET
					display_name = excluded.display_name,
					saturday = excluded.saturday,
					sunday = excluded.sunday,
					updated_at = excluded.updated_at
				WHERE excluded.updated_at >= responses.updated_at
			`,
				response.PollID,
				response.ParticipantID,
				response.DisplayName,
				boolToInt(response.Saturday),
				boolToInt(response.Sunday),
				formatTime(first),
				formatTime(response.UpdatedAt),
			)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			applied = affected > 0
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// DeleteResponse removes a participant's response from an open poll.
func (r *ResponseRepository) DeleteResponse(ctx context.Context, pollID, participantID string) (bool, error) {
	var deleted bool
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := requireOpenPoll(ctx, tx, pollID); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx,
				`DELETE FROM responses WHERE poll_id = ? AND participant_id = ?`, pollID, participantID)
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
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ListResponses returns responses in first-submission order.
func (r *ResponseRepository) ListResponses(ctx context.Context, pollID string) ([]persistence.Response, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT poll_id, participant_id, display_name, saturday, sunday, first_submitted_at, updated_at
		FROM responses
		WHERE poll_id = ?
		ORDER BY first_submitted_at ASC, rowid ASC
	`, pollID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var responses []persistence.Response
	for rows.Next() {
		var (
			resp             persistence.Response
			saturday, sunday int
			first, updated   string
		)
		if err := rows.Scan(&resp.PollID, &resp.ParticipantID, &resp.DisplayName, &saturday, &sunday, &first, &updated); err != nil {
			return nil, r.mapper.MapError(err)
		}
		resp.Saturday = saturday == 1
		resp.Sunday = sunday == 1
		if resp.FirstSubmittedAt, err = parseTime(first); err != nil {
			return nil, fmt.Errorf("failed to parse first_submitted_at: %w", err)
		}
		if resp.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at: %w", err)
		}
		responses = append(responses, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return responses, nil
}

func requireOpenPoll(ctx context.Context, tx *sql.Tx, pollID string) error {
	var state string
	err := tx.QueryRowContext(ctx, `SELECT state FROM polls WHERE id = ?`, pollID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return err
	}
	if persistence.PollState(state) != persistence.PollStateOpen {
		return persistence.ErrPollNotOpen
	}
	return nil
}
