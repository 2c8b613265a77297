package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/weekend-scheduler/internal/testfixtures"
)

func TestResponseService_SubmitResponse(t *testing.T) {
	t.Parallel()

	t.Run("counts distinct participants and replaces answers", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
		poll := set.openPoll(t, "g1")

		if got := set.submit(t, poll.ID, "alice", true, false); got.Count != 1 || !got.Applied {
			t.Fatalf("expected first answer applied with count 1, got %+v", got)
		}
		set.clock.Advance(time.Minute)
		if got := set.submit(t, poll.ID, "bob", false, true); got.Count != 2 {
			t.Fatalf("expected count 2, got %d", got.Count)
		}
		set.clock.Advance(time.Minute)
		got := set.submit(t, poll.ID, "alice", false, true)
		if got.Count != 2 {
			t.Fatalf("expected overwrite to keep count 2, got %d", got.Count)
		}
		if got.Response.Saturday || !got.Response.Sunday {
			t.Fatalf("expected both flags replaced, got %+v", got.Response)
		}
		if !got.Response.FirstSubmittedAt.Equal(testfixtures.ReferenceTime()) {
			t.Fatalf("expected first submission time kept, got %v", got.Response.FirstSubmittedAt)
		}

		responses, err := set.responses.ListResponses(context.Background(), poll.ID)
		if err != nil {
			t.Fatalf("ListResponses returned error: %v", err)
		}
		if len(responses) != 2 || responses[0].ParticipantID != "alice" || responses[1].ParticipantID != "bob" {
			t.Fatalf("expected first-submission order, got %+v", responses)
		}
		if _, updated, _ := set.notifier.counts(); updated != 3 {
			t.Fatalf("expected three update notifications, got %d", updated)
		}
	})

	t.Run("keeps the newer answer when an older one arrives late", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
		poll := set.openPoll(t, "g1")

		base := testfixtures.ReferenceTime()
		if _, err := set.responses.SubmitResponse(ctx, SubmitResponseParams{
			PollID: poll.ID, ParticipantID: "alice", Saturday: false, Sunday: true, SubmittedAt: base.Add(2 * time.Minute),
		}); err != nil {
			t.Fatalf("SubmitResponse returned error: %v", err)
		}
		stale, err := set.responses.SubmitResponse(ctx, SubmitResponseParams{
			PollID: poll.ID, ParticipantID: "alice", Saturday: true, Sunday: false, SubmittedAt: base.Add(time.Minute),
		})
		if err != nil {
			t.Fatalf("stale SubmitResponse returned error: %v", err)
		}
		if stale.Applied {
			t.Fatalf("expected stale submission to be ignored")
		}
		if stale.Response.Saturday || !stale.Response.Sunday {
			t.Fatalf("expected stored answer unchanged, got %+v", stale.Response)
		}
		if _, updated, _ := set.notifier.counts(); updated != 1 {
			t.Fatalf("expected only the applied write to notify, got %d", updated)
		}
	})

	t.Run("uses the participant id when no display name is given", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
		poll := set.openPoll(t, "g1")

		got, err := set.responses.SubmitResponse(context.Background(), SubmitResponseParams{PollID: poll.ID, ParticipantID: "u-9", Saturday: true})
		if err != nil {
			t.Fatalf("SubmitResponse returned error: %v", err)
		}
		if got.Response.DisplayName != "u-9" {
			t.Fatalf("expected display name fallback, got %q", got.Response.DisplayName)
		}
	})

	t.Run("rejects closed and unknown polls", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
		poll := set.openPoll(t, "g1")
		set.submit(t, poll.ID, "alice", true, true)
		if _, err := set.polls.ClosePoll(ctx, poll.ID); err != nil {
			t.Fatalf("ClosePoll returned error: %v", err)
		}

		_, err := set.responses.SubmitResponse(ctx, SubmitResponseParams{PollID: poll.ID, ParticipantID: "bob", Saturday: true})
		if !errors.Is(err, ErrPollClosed) {
			t.Fatalf("expected ErrPollClosed, got %v", err)
		}
		_, err = set.responses.SubmitResponse(ctx, SubmitResponseParams{PollID: "missing", ParticipantID: "bob"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}

		responses, err := set.responses.ListResponses(ctx, poll.ID)
		if err != nil {
			t.Fatalf("ListResponses returned error: %v", err)
		}
		if len(responses) != 1 {
			t.Fatalf("expected closed poll responses unchanged, got %d", len(responses))
		}
	})

	t.Run("validates required identifiers", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)

		_, err := set.responses.SubmitResponse(context.Background(), SubmitResponseParams{ParticipantID: " "})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(vErr.FieldErrors) != 2 {
			t.Fatalf("expected poll and participant errors, got %v", vErr.FieldErrors)
		}
	})
}

func TestResponseService_WithdrawResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
	poll := set.openPoll(t, "g1")
	set.submit(t, poll.ID, "alice", true, false)
	set.submit(t, poll.ID, "bob", true, false)

	removed, err := set.responses.WithdrawResponse(ctx, poll.ID, "alice")
	if err != nil || !removed {
		t.Fatalf("expected withdrawal, got %v, %v", removed, err)
	}
	removed, err = set.responses.WithdrawResponse(ctx, poll.ID, "alice")
	if err != nil || removed {
		t.Fatalf("expected second withdrawal to be a no-op, got %v, %v", removed, err)
	}

	status, err := set.polls.Status(ctx, poll.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if status.Feasibility.Saturday.Count != 1 {
		t.Fatalf("expected withdrawn answer excluded, got %d", status.Feasibility.Saturday.Count)
	}

	if _, err := set.polls.ClosePoll(ctx, poll.ID); err != nil {
		t.Fatalf("ClosePoll returned error: %v", err)
	}
	if _, err := set.responses.WithdrawResponse(ctx, poll.ID, "bob"); !errors.Is(err, ErrPollClosed) {
		t.Fatalf("expected ErrPollClosed, got %v", err)
	}
	if _, err := set.responses.WithdrawResponse(ctx, "missing", "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResponseService_ConcurrentSubmissions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
	poll := set.openPoll(t, "g1")

	const participants = 12
	var wg sync.WaitGroup
	errs := make(chan error, participants*2)
	for i := 0; i < participants; i++ {
		for round := 0; round < 2; round++ {
			wg.Add(1)
			go func(i, round int) {
				defer wg.Done()
				_, err := set.responses.SubmitResponse(ctx, SubmitResponseParams{
					PollID:        poll.ID,
					ParticipantID: fmt.Sprintf("p-%02d", i),
					Saturday:      round == 0,
					Sunday:        round == 1,
					SubmittedAt:   testfixtures.ReferenceTime().Add(time.Duration(round) * time.Second),
				})
				errs <- err
			}(i, round)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("SubmitResponse returned error: %v", err)
		}
	}

	responses, err := set.responses.ListResponses(ctx, poll.ID)
	if err != nil {
		t.Fatalf("ListResponses returned error: %v", err)
	}
	if len(responses) != participants {
		t.Fatalf("expected one response per participant, got %d", len(responses))
	}
	for _, r := range responses {
		if r.Saturday || !r.Sunday {
			t.Fatalf("expected the later submission to win for %s, got %+v", r.ParticipantID, r)
		}
	}
}

func TestResponseService_CloseRace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithMinParticipants(1)))
	poll := set.openPoll(t, "g1")

	var (
		wg      sync.WaitGroup
		summary PollSummary
	)
	accepted := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("p-%02d", i)
			_, err := set.responses.SubmitResponse(ctx, SubmitResponseParams{PollID: poll.ID, ParticipantID: id, Saturday: true})
			if err == nil {
				accepted <- id
			} else if !errors.Is(err, ErrPollClosed) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		summary, err = set.polls.ClosePoll(ctx, poll.ID)
		if err != nil {
			t.Errorf("ClosePoll returned error: %v", err)
		}
	}()
	wg.Wait()
	close(accepted)

	count := 0
	for range accepted {
		count++
	}
	if summary.Status.Feasibility.Saturday.Count != count {
		t.Fatalf("expected summary to include every accepted answer: %d vs %d", summary.Status.Feasibility.Saturday.Count, count)
	}
}

func TestResponseService_RosterLookupDoesNotHoldPollLock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
	poll := set.openPoll(t, "g1")
	set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithTrackedRole("players")))

	roster := newBlockingRoster("A", "B")
	collab := Collaborators{Notifier: set.notifier, Roster: roster, Locks: NewPollLocks(), Defaults: DefaultGuildDefaults("UTC")}
	responses := NewResponseServiceWithLogger(set.store, collab, set.clock.NowFunc(), discardLogger())

	first := make(chan error, 1)
	go func() {
		_, err := responses.SubmitResponse(ctx, SubmitResponseParams{PollID: poll.ID, ParticipantID: "A", Saturday: true})
		first <- err
	}()
	select {
	case <-roster.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("first submission never resolved the roster")
	}

	second := make(chan error, 1)
	go func() {
		_, err := responses.SubmitResponse(ctx, SubmitResponseParams{PollID: poll.ID, ParticipantID: "B", Sunday: true})
		second <- err
	}()
	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("SubmitResponse returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(roster.release)
		t.Fatalf("second submission waited on the roster lookup of the first")
	}

	close(roster.release)
	if err := <-first; err != nil {
		t.Fatalf("SubmitResponse returned error: %v", err)
	}
	if _, updated, _ := set.notifier.counts(); updated != 2 {
		t.Fatalf("expected two updates, got %d", updated)
	}
}
