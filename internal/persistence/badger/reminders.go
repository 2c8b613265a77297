package badger

import (
	"context"
	"encoding/json"

	"github.com/dgraph-io/badger/v3"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// ClaimReminder writes the mark if absent. Two transactions racing on the
// same key conflict, and the retry then observes the winner's mark.
func (s *Store) ClaimReminder(ctx context.Context, mark persistence.ReminderMark) (bool, error) {
	if mark.PollID == "" || mark.IntervalIndex < 0 {
		return false, persistence.ErrConstraintViolation
	}
	var claimed bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		claimed = false
		if _, err := getPollForMark(txn, mark.PollID); err != nil {
			return err
		}
		key := markKey(mark.PollID, mark.ParticipantID, mark.IntervalIndex)
		found, err := exists(txn, key)
		if err != nil || found {
			return err
		}
		if err := setJSON(txn, key, mark); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	return claimed, err
}

// ListReminderMarks returns a poll's marks ordered by participant and interval.
func (s *Store) ListReminderMarks(_ context.Context, pollID string) ([]persistence.ReminderMark, error) {
	var marks []persistence.ReminderMark
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, markPrefix(pollID), func(_ string, val []byte) error {
			var mark persistence.ReminderMark
			if err := json.Unmarshal(val, &mark); err != nil {
				return err
			}
			marks = append(marks, mark)
			return nil
		})
	})
	return marks, err
}

// getPollForMark mirrors the foreign key on reminder_marks.
func getPollForMark(txn *badger.Txn, pollID string) (persistence.Poll, error) {
	var poll persistence.Poll
	err := getJSON(txn, pollKey(pollID), &poll)
	return poll, err
}
