package badger

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v3"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// UpsertResponse stores the response unless a newer one is already held.
// The poll is read in the same transaction so a concurrent close conflicts
// with the write instead of racing it.
func (s *Store) UpsertResponse(ctx context.Context, response persistence.Response) (bool, error) {
	if response.PollID == "" || response.ParticipantID == "" {
		return false, persistence.ErrConstraintViolation
	}
	if response.FirstSubmittedAt.IsZero() {
		response.FirstSubmittedAt = response.UpdatedAt
	}

	var applied bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		applied = false
		if err := requireOpenPoll(txn, response.PollID); err != nil {
			return err
		}

		key := responseKey(response.PollID, response.ParticipantID)
		var stored persistence.Response
		err := getJSON(txn, key, &stored)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
		case err != nil:
			return err
		default:
			if response.UpdatedAt.Before(stored.UpdatedAt) {
				return nil
			}
			response.FirstSubmittedAt = stored.FirstSubmittedAt
		}

		if err := setJSON(txn, key, response); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// DeleteResponse removes a participant's response from an open poll.
func (s *Store) DeleteResponse(ctx context.Context, pollID, participantID string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		deleted = false
		if err := requireOpenPoll(txn, pollID); err != nil {
			return err
		}
		key := responseKey(pollID, participantID)
		found, err := exists(txn, key)
		if err != nil || !found {
			return err
		}
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ListResponses returns responses in first-submission order.
func (s *Store) ListResponses(_ context.Context, pollID string) ([]persistence.Response, error) {
	var responses []persistence.Response
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, responsePrefix(pollID), func(_ string, val []byte) error {
			var resp persistence.Response
			if err := json.Unmarshal(val, &resp); err != nil {
				return err
			}
			responses = append(responses, resp)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(responses, func(i, j int) bool {
		a, b := responses[i], responses[j]
		if a.FirstSubmittedAt.Equal(b.FirstSubmittedAt) {
			return a.ParticipantID < b.ParticipantID
		}
		return a.FirstSubmittedAt.Before(b.FirstSubmittedAt)
	})
	return responses, nil
}

func requireOpenPoll(txn *badger.Txn, pollID string) error {
	var poll persistence.Poll
	if err := getJSON(txn, pollKey(pollID), &poll); err != nil {
		return err
	}
	if poll.State != persistence.PollStateOpen {
		return persistence.ErrPollNotOpen
	}
	return nil
}
