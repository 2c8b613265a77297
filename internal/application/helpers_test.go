package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/testfixtures"
)

type recordingNotifier struct {
	mu      sync.Mutex
	created []PollStatus
	updated []PollStatus
	closed  []PollSummary
}

func (n *recordingNotifier) PollCreated(_ context.Context, status PollStatus) {
	n.mu.Lock()
	n.created = append(n.created, status)
	n.mu.Unlock()
}

func (n *recordingNotifier) PollUpdated(_ context.Context, status PollStatus) {
	n.mu.Lock()
	n.updated = append(n.updated, status)
	n.mu.Unlock()
}

func (n *recordingNotifier) PollClosed(_ context.Context, summary PollSummary) {
	n.mu.Lock()
	n.closed = append(n.closed, summary)
	n.mu.Unlock()
}

func (n *recordingNotifier) counts() (created, updated, closed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.created), len(n.updated), len(n.closed)
}

type rosterStub struct {
	mu      sync.Mutex
	members map[string][]string
	err     error
	calls   int
}

func (r *rosterStub) ResolveRoster(_ context.Context, guildID, roleID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.members[guildID+"/"+roleID], nil
}

var errDirectoryDown = errors.New("directory unavailable")

var errStoreDown = errors.New("store unavailable")

// reloadFailingStore fails GetPoll once a poll has been closed through it.
type reloadFailingStore struct {
	PollStore
	mu     sync.Mutex
	closed bool
}

func (s *reloadFailingStore) ClosePoll(ctx context.Context, id string, closedAt time.Time, reason string) error {
	if err := s.PollStore.ClosePoll(ctx, id, closedAt, reason); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *reloadFailingStore) GetPoll(ctx context.Context, id string) (persistence.Poll, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return persistence.Poll{}, errStoreDown
	}
	return s.PollStore.GetPoll(ctx, id)
}

// blockingRoster holds its first lookup until release is closed.
type blockingRoster struct {
	members []string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingRoster(members ...string) *blockingRoster {
	return &blockingRoster{members: members, entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *blockingRoster) ResolveRoster(ctx context.Context, _, _ string) ([]string, error) {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.members, nil
}

type serviceSet struct {
	store     persistence.Store
	clock     *testfixtures.Clock
	ids       *testfixtures.IDGenerator
	notifier  *recordingNotifier
	roster    *rosterStub
	polls     *PollService
	responses *ResponseService
	configs   *ConfigService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newServiceSet(t *testing.T) *serviceSet {
	t.Helper()

	set := &serviceSet{
		store:    testfixtures.NewSQLiteHarness(t),
		clock:    testfixtures.NewClock(testfixtures.ReferenceTime()),
		ids:      testfixtures.NewIDGenerator("poll"),
		notifier: &recordingNotifier{},
		roster:   &rosterStub{members: map[string][]string{}},
	}
	collab := Collaborators{
		Notifier: set.notifier,
		Roster:   set.roster,
		Locks:    NewPollLocks(),
		Defaults: DefaultGuildDefaults("UTC"),
	}
	logger := discardLogger()
	set.polls = NewPollServiceWithLogger(set.store, collab, set.ids.NextFunc(), set.clock.NowFunc(), logger)
	set.responses = NewResponseServiceWithLogger(set.store, collab, set.clock.NowFunc(), logger)
	set.configs = NewConfigServiceWithLogger(set.store, nil, collab.Defaults, set.clock.NowFunc(), logger)
	return set
}

func (s *serviceSet) saveConfig(t *testing.T, config persistence.GuildConfig) {
	t.Helper()
	if err := s.store.SaveGuildConfig(context.Background(), config); err != nil {
		t.Fatalf("SaveGuildConfig returned error: %v", err)
	}
}

func (s *serviceSet) openPoll(t *testing.T, guildID string) Poll {
	t.Helper()
	poll, err := s.polls.CreatePoll(context.Background(), CreatePollParams{GuildID: guildID})
	if err != nil {
		t.Fatalf("CreatePoll returned error: %v", err)
	}
	return poll
}

func (s *serviceSet) submit(t *testing.T, pollID, participant string, saturday, sunday bool) SubmitResult {
	t.Helper()
	result, err := s.responses.SubmitResponse(context.Background(), SubmitResponseParams{
		PollID:        pollID,
		ParticipantID: participant,
		DisplayName:   participant,
		Saturday:      saturday,
		Sunday:        sunday,
	})
	if err != nil {
		t.Fatalf("SubmitResponse returned error: %v", err)
	}
	return result
}
