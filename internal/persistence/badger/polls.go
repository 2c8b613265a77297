package badger

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// CreatePoll stores the poll and its indexes. A channel holding an open
// poll rejects a second one with persistence.ErrDuplicate.
func (s *Store) CreatePoll(ctx context.Context, poll persistence.Poll) error {
	if poll.ID == "" || poll.ChannelID == "" {
		return persistence.ErrConstraintViolation
	}
	if poll.State == "" {
		poll.State = persistence.PollStateOpen
	}
	if !poll.Deadline.After(poll.CreatedAt) {
		return persistence.ErrConstraintViolation
	}

	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, pollKey(poll.ID))
		if err != nil {
			return err
		}
		if taken {
			return persistence.ErrDuplicate
		}
		if poll.State == persistence.PollStateOpen {
			busy, err := exists(txn, openPollKey(poll.ChannelID))
			if err != nil {
				return err
			}
			if busy {
				return persistence.ErrDuplicate
			}
			if err := txn.Set([]byte(openPollKey(poll.ChannelID)), []byte(poll.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(channelIndexKey(poll.ChannelID, poll.CreatedAt, poll.ID)), []byte(poll.ID)); err != nil {
			return err
		}
		return setJSON(txn, pollKey(poll.ID), poll)
	})
}

// GetPoll retrieves a poll by ID.
func (s *Store) GetPoll(_ context.Context, id string) (persistence.Poll, error) {
	var poll persistence.Poll
	if id == "" {
		return poll, persistence.ErrNotFound
	}
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, pollKey(id), &poll)
	})
	return poll, err
}

// GetOpenPollForChannel returns the channel's open poll.
func (s *Store) GetOpenPollForChannel(_ context.Context, channelID string) (persistence.Poll, error) {
	var poll persistence.Poll
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(openPollKey(channelID)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return persistence.ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, pollKey(string(id)), &poll)
	})
	return poll, err
}

// LatestPollForChannel walks the channel index backwards and returns the
// newest poll.
func (s *Store) LatestPollForChannel(_ context.Context, channelID string) (persistence.Poll, error) {
	var poll persistence.Poll
	err := s.view(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(channelIndexPrefix(channelID))
		// Seeking in reverse needs a key just past every entry under prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return persistence.ErrNotFound
		}
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, pollKey(string(id)), &poll)
	})
	return poll, err
}

// ListOpenPolls returns every open poll ordered by creation.
func (s *Store) ListOpenPolls(_ context.Context) ([]persistence.Poll, error) {
	var polls []persistence.Poll
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, "openpoll/", func(_ string, val []byte) error {
			var poll persistence.Poll
			if err := getJSON(txn, pollKey(string(val)), &poll); err != nil {
				return err
			}
			polls = append(polls, poll)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(polls, func(i, j int) bool {
		if polls[i].CreatedAt.Equal(polls[j].CreatedAt) {
			return polls[i].ID < polls[j].ID
		}
		return polls[i].CreatedAt.Before(polls[j].CreatedAt)
	})
	return polls, nil
}

// ClosePoll moves an open poll to closed, drops the open index and discards
// the poll's reminder marks in one transaction.
func (s *Store) ClosePoll(ctx context.Context, id string, closedAt time.Time, reason string) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		var poll persistence.Poll
		if err := getJSON(txn, pollKey(id), &poll); err != nil {
			return err
		}
		if poll.State != persistence.PollStateOpen {
			return persistence.ErrPollNotOpen
		}

		closed := closedAt
		poll.State = persistence.PollStateClosed
		poll.ClosedAt = &closed
		poll.CloseReason = reason
		if err := setJSON(txn, pollKey(id), poll); err != nil {
			return err
		}
		if err := txn.Delete([]byte(openPollKey(poll.ChannelID))); err != nil {
			return err
		}
		for _, key := range keysWithPrefix(txn, markPrefix(id)) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
