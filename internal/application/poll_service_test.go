package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/recommendation"
	"github.com/example/weekend-scheduler/internal/testfixtures"
)

func TestPollService_CreatePoll(t *testing.T) {
	t.Parallel()

	t.Run("sets the deadline to the next deadline slot", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))

		poll := set.openPoll(t, "g1")
		if poll.ID != "poll-1" || poll.ChannelID != "c1" || !poll.IsOpen() {
			t.Fatalf("unexpected poll: %+v", poll)
		}
		if !poll.Deadline.Equal(testfixtures.ReferenceDeadline()) {
			t.Fatalf("expected deadline %v, got %v", testfixtures.ReferenceDeadline(), poll.Deadline)
		}
		if !poll.Deadline.After(poll.CreatedAt) {
			t.Fatalf("expected deadline after creation")
		}
		if created, _, _ := set.notifier.counts(); created != 1 {
			t.Fatalf("expected one created notification, got %d", created)
		}
	})

	t.Run("computes the deadline in the guild zone", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1",
			testfixtures.WithSchedulingChannel("c1"),
			testfixtures.WithDefaultTimezone("America/New_York")))

		poll := set.openPoll(t, "g1")
		// Wednesday 18:00 EDT is 22:00 UTC.
		want := time.Date(2024, time.June, 5, 22, 0, 0, 0, time.UTC)
		if !poll.Deadline.Equal(want) {
			t.Fatalf("expected deadline %v, got %v", want, poll.Deadline)
		}
	})

	t.Run("moves to next week when the deadline slot already passed", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
		set.clock.Set(testfixtures.ReferenceDeadline())

		poll := set.openPoll(t, "g1")
		want := testfixtures.ReferenceDeadline().Add(7 * 24 * time.Hour)
		if !poll.Deadline.Equal(want) {
			t.Fatalf("expected deadline %v, got %v", want, poll.Deadline)
		}
	})

	t.Run("rejects a second open poll with ErrConflict", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
		set.openPoll(t, "g1")

		_, err := set.polls.CreatePoll(context.Background(), CreatePollParams{GuildID: "g1", ChannelID: "c1"})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		if created, _, _ := set.notifier.counts(); created != 1 {
			t.Fatalf("expected no notification for rejected poll, got %d", created)
		}
	})

	t.Run("requires a channel for guilds without config", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)

		_, err := set.polls.CreatePoll(context.Background(), CreatePollParams{GuildID: "fresh"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["channel_id"]; !ok {
			t.Fatalf("expected channel_id error, got %v", vErr.FieldErrors)
		}

		poll, err := set.polls.CreatePoll(context.Background(), CreatePollParams{GuildID: "fresh", ChannelID: "c9"})
		if err != nil {
			t.Fatalf("expected explicit channel to work with defaults, got %v", err)
		}
		if !poll.Deadline.Equal(testfixtures.ReferenceDeadline()) {
			t.Fatalf("expected default deadline, got %v", poll.Deadline)
		}
	})
}

func TestPollService_ClosePoll(t *testing.T) {
	t.Parallel()

	t.Run("closes once and reports ErrAlreadyClosed afterwards", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
		poll := set.openPoll(t, "g1")
		set.submit(t, poll.ID, "alice", true, false)

		summary, err := set.polls.ClosePoll(context.Background(), poll.ID)
		if err != nil {
			t.Fatalf("ClosePoll returned error: %v", err)
		}
		if summary.Reason != CloseReasonManual || summary.Status.Poll.State != PollStateClosed {
			t.Fatalf("unexpected summary: %+v", summary)
		}
		if summary.Status.Feasibility.Saturday.Count != 1 {
			t.Fatalf("expected final feasibility in summary, got %+v", summary.Status.Feasibility)
		}

		if _, err := set.polls.ClosePoll(context.Background(), poll.ID); !errors.Is(err, ErrAlreadyClosed) {
			t.Fatalf("expected ErrAlreadyClosed, got %v", err)
		}
		if _, _, closed := set.notifier.counts(); closed != 1 {
			t.Fatalf("expected exactly one summary, got %d", closed)
		}

		got, err := set.polls.GetPoll(context.Background(), poll.ID)
		if err != nil {
			t.Fatalf("GetPoll returned error: %v", err)
		}
		if got.State != PollStateClosed {
			t.Fatalf("expected poll to end closed, got %s", got.State)
		}
	})

	t.Run("reports the committed close when the reload fails", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
		poll := set.openPoll(t, "g1")
		set.submit(t, poll.ID, "alice", true, false)

		store := &reloadFailingStore{PollStore: set.store}
		collab := Collaborators{Notifier: set.notifier, Locks: NewPollLocks(), Defaults: DefaultGuildDefaults("UTC")}
		polls := NewPollServiceWithLogger(store, collab, set.ids.NextFunc(), set.clock.NowFunc(), discardLogger())

		summary, err := polls.ClosePoll(ctx, poll.ID)
		if err != nil {
			t.Fatalf("ClosePoll returned error: %v", err)
		}
		if summary.Status.Poll.State != PollStateClosed || summary.Reason != CloseReasonManual {
			t.Fatalf("expected a closed summary, got %+v", summary)
		}
		if summary.Status.Feasibility.Saturday.Count != 1 {
			t.Fatalf("expected responses in the summary, got %+v", summary.Status.Feasibility)
		}
		if _, _, closed := set.notifier.counts(); closed != 1 {
			t.Fatalf("expected exactly one summary, got %d", closed)
		}
	})

	t.Run("reports ErrNotFound for unknown polls", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		if _, err := set.polls.ClosePoll(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("closes the active poll of a channel", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
		poll := set.openPoll(t, "g1")

		summary, err := set.polls.CloseActive(context.Background(), "c1")
		if err != nil {
			t.Fatalf("CloseActive returned error: %v", err)
		}
		if summary.Status.Poll.ID != poll.ID {
			t.Fatalf("expected %s closed, got %s", poll.ID, summary.Status.Poll.ID)
		}
		if _, err := set.polls.CloseActive(context.Background(), "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound without an open poll, got %v", err)
		}
		if _, ok, err := set.polls.GetActivePoll(context.Background(), "c1"); err != nil || ok {
			t.Fatalf("expected no active poll, got %v, %v", ok, err)
		}
	})
}

func TestPollService_Purge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	for _, g := range []string{"g1", "g2", "g3"} {
		set.saveConfig(t, testfixtures.NewGuildConfig(g))
	}
	p1 := set.openPoll(t, "g1")
	set.openPoll(t, "g2")
	p3 := set.openPoll(t, "g3")

	if n, err := set.polls.Purge(ctx, PurgeScope{PollID: p1.ID}); err != nil || n != 1 {
		t.Fatalf("expected poll scope to close 1, got %d, %v", n, err)
	}
	if n, err := set.polls.Purge(ctx, PurgeScope{PollID: p1.ID}); err != nil || n != 0 {
		t.Fatalf("expected repeated purge to close 0, got %d, %v", n, err)
	}
	if n, err := set.polls.Purge(ctx, PurgeScope{ChannelID: p3.ChannelID}); err != nil || n != 1 {
		t.Fatalf("expected channel scope to close 1, got %d, %v", n, err)
	}
	if n, err := set.polls.Purge(ctx, PurgeScope{ChannelID: "nowhere"}); err != nil || n != 0 {
		t.Fatalf("expected empty channel scope to succeed with 0, got %d, %v", n, err)
	}
	if n, err := set.polls.Purge(ctx, PurgeScope{}); err != nil || n != 1 {
		t.Fatalf("expected full purge to close the remaining poll, got %d, %v", n, err)
	}

	open, err := set.polls.ListOpenPolls(ctx)
	if err != nil {
		t.Fatalf("ListOpenPolls returned error: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open polls, got %d", len(open))
	}
	if _, _, closed := set.notifier.counts(); closed != 0 {
		t.Fatalf("expected purge to publish no summaries, got %d", closed)
	}
	got, err := set.polls.GetPoll(ctx, p1.ID)
	if err != nil {
		t.Fatalf("GetPoll returned error: %v", err)
	}
	if got.CloseReason != CloseReasonPurged {
		t.Fatalf("expected purged reason, got %q", got.CloseReason)
	}
}

func TestPollService_CloseExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1"))
	poll := set.openPoll(t, "g1")

	if summaries, err := set.polls.CloseExpired(ctx); err != nil || len(summaries) != 0 {
		t.Fatalf("expected nothing due before the deadline, got %d, %v", len(summaries), err)
	}

	set.clock.Set(poll.Deadline)
	summaries, err := set.polls.CloseExpired(ctx)
	if err != nil {
		t.Fatalf("CloseExpired returned error: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Reason != CloseReasonDeadline {
		t.Fatalf("expected one deadline summary, got %+v", summaries)
	}
	if summaries, _ := set.polls.CloseExpired(ctx); len(summaries) != 0 {
		t.Fatalf("expected closed poll to be skipped, got %d", len(summaries))
	}
}

func TestPollService_EnsureWeeklyPolls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
	// Guild created after this week's slot waits for next week.
	set.saveConfig(t, testfixtures.NewGuildConfig("late",
		testfixtures.WithSchedulingChannel("c2"),
		testfixtures.WithConfigCreatedAt(testfixtures.ReferenceTime().Add(time.Minute))))
	// Guild without a channel is never auto-polled.
	set.saveConfig(t, testfixtures.NewGuildConfig("quiet", testfixtures.WithSchedulingChannel("")))

	set.clock.Set(testfixtures.ReferenceTime().Add(5 * time.Minute))
	created, err := set.polls.EnsureWeeklyPolls(ctx)
	if err != nil {
		t.Fatalf("EnsureWeeklyPolls returned error: %v", err)
	}
	if len(created) != 1 || created[0].ChannelID != "c1" {
		t.Fatalf("expected one poll in c1, got %+v", created)
	}

	if again, _ := set.polls.EnsureWeeklyPolls(ctx); len(again) != 0 {
		t.Fatalf("expected open poll to suppress creation, got %d", len(again))
	}

	if _, err := set.polls.ClosePoll(ctx, created[0].ID); err != nil {
		t.Fatalf("ClosePoll returned error: %v", err)
	}
	if again, _ := set.polls.EnsureWeeklyPolls(ctx); len(again) != 0 {
		t.Fatalf("expected no second poll in the same week, got %d", len(again))
	}

	set.clock.Set(testfixtures.ReferenceTime().Add(7 * 24 * time.Hour))
	nextWeek, err := set.polls.EnsureWeeklyPolls(ctx)
	if err != nil {
		t.Fatalf("EnsureWeeklyPolls returned error: %v", err)
	}
	if len(nextWeek) != 2 {
		t.Fatalf("expected polls for c1 and c2 next week, got %+v", nextWeek)
	}
}

func TestPollService_StatusRosterScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1",
		testfixtures.WithSchedulingChannel("c1"),
		testfixtures.WithMinParticipants(3),
		testfixtures.WithTrackedRole("players")))
	set.roster.members["g1/players"] = []string{"A", "B", "C", "D", "E"}
	poll := set.openPoll(t, "g1")

	set.submit(t, poll.ID, "A", true, false)
	set.submit(t, poll.ID, "B", true, false)
	set.submit(t, poll.ID, "C", false, true)

	status, err := set.polls.Status(ctx, poll.ID)
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	f := status.Feasibility
	if f.Saturday.Count != 2 || f.Saturday.Viable || f.Sunday.Count != 1 || f.Sunday.Viable {
		t.Fatalf("unexpected partial feasibility: %+v", f)
	}
	if f.AllResponded {
		t.Fatalf("expected allResponded false before D and E answer")
	}
	if pending := status.Pending(); len(pending) != 2 || pending[0] != "D" || pending[1] != "E" {
		t.Fatalf("expected pending [D E], got %v", pending)
	}
	if status.Recommendation.Outcome != recommendation.OutcomeNoConsensus {
		t.Fatalf("expected no consensus, got %s", status.Recommendation.Outcome)
	}

	set.submit(t, poll.ID, "D", true, true)
	set.submit(t, poll.ID, "E", true, true)

	rec, err := set.polls.GetRecommendation(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetRecommendation returned error: %v", err)
	}
	if rec.Outcome != recommendation.OutcomeSaturday || rec.SaturdayCount != 4 || rec.SundayCount != 3 {
		t.Fatalf("expected Saturday 4 over Sunday 3, got %+v", rec)
	}
	result, err := set.polls.GetFeasibility(ctx, poll.ID)
	if err != nil {
		t.Fatalf("GetFeasibility returned error: %v", err)
	}
	if !result.AllResponded || !result.Saturday.Viable || !result.Sunday.Viable {
		t.Fatalf("expected both days viable with full coverage, got %+v", result)
	}
	if days := result.Viable(); len(days) != 2 || days[0] != feasibility.Saturday {
		t.Fatalf("unexpected viable days %v", days)
	}
}

func TestPollService_StatusWithoutRoster(t *testing.T) {
	t.Parallel()

	t.Run("directory failure degrades to no-roster mode", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1",
			testfixtures.WithMinParticipants(1),
			testfixtures.WithTrackedRole("players")))
		set.roster.err = errDirectoryDown
		poll := set.openPoll(t, "g1")
		set.submit(t, poll.ID, "A", false, true)

		status, err := set.polls.Status(ctx, poll.ID)
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if status.Feasibility.RosterTracked || status.Feasibility.AllResponded {
			t.Fatalf("expected no-roster evaluation, got %+v", status.Feasibility)
		}
		if !status.RosterUnavailable {
			t.Fatalf("expected the failed lookup to be reported")
		}
		if status.Recommendation.Outcome != recommendation.OutcomeSunday {
			t.Fatalf("expected Sunday, got %s", status.Recommendation.Outcome)
		}
	})

	t.Run("no tracked role is not a failed lookup", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithTrackedRole("")))
		set.roster.err = errDirectoryDown
		poll := set.openPoll(t, "g1")

		status, err := set.polls.Status(context.Background(), poll.ID)
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if status.RosterUnavailable || status.Feasibility.RosterTracked {
			t.Fatalf("expected plain no-roster mode, got %+v", status)
		}
	})

	t.Run("unknown polls report ErrNotFound", func(t *testing.T) {
		t.Parallel()
		set := newServiceSet(t)
		if _, err := set.polls.Status(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := set.polls.ActiveStatus(context.Background(), "c1"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for empty channel, got %v", err)
		}
	})
}

func TestPollService_LocalizedDeadlines(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	set := newServiceSet(t)
	set.saveConfig(t, testfixtures.NewGuildConfig("g1", testfixtures.WithSchedulingChannel("c1")))
	// America/Chicago is UTC-5 in June.
	if _, err := set.configs.SetTimezonePreference(ctx, "g1", "alice", "America/Chicago", false); err != nil {
		t.Fatalf("SetTimezonePreference returned error: %v", err)
	}
	if _, err := set.configs.SetTimezonePreference(ctx, "g1", "bob", "Asia/Tokyo", false); err != nil {
		t.Fatalf("SetTimezonePreference returned error: %v", err)
	}
	poll := set.openPoll(t, "g1")

	status, err := set.polls.ActiveStatus(ctx, "c1")
	if err != nil {
		t.Fatalf("ActiveStatus returned error: %v", err)
	}
	if status.Poll.ID != poll.ID || status.GuildZone != "UTC" {
		t.Fatalf("unexpected status header: %+v", status.Poll)
	}
	if len(status.Deadlines) != 2 {
		t.Fatalf("expected one line per zone in use, got %+v", status.Deadlines)
	}
	chicago := status.Deadlines[0]
	if chicago.Zone != "America/Chicago" || len(chicago.Participants) != 1 || chicago.Participants[0] != "alice" {
		t.Fatalf("expected alice alone under America/Chicago, got %+v", chicago)
	}
	if !chicago.Deadline.Equal(status.GuildDeadline) {
		t.Fatalf("expected the same instant in both zones")
	}
	if chicago.Deadline.Hour() != status.GuildDeadline.Hour()-5 {
		t.Fatalf("expected local wall clock 5 hours behind, got %s vs %s", chicago.Deadline, status.GuildDeadline)
	}
}

func TestPollService_NilReceiver(t *testing.T) {
	t.Parallel()

	var svc *PollService
	if _, err := svc.CreatePoll(context.Background(), CreatePollParams{}); err == nil {
		t.Fatalf("expected error from nil service")
	}
	if _, err := svc.Purge(context.Background(), PurgeScope{}); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestMapPollRepoError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   error
		want error
	}{
		{in: persistence.ErrNotFound, want: ErrNotFound},
		{in: persistence.ErrDuplicate, want: ErrConflict},
		{in: persistence.ErrPollNotOpen, want: ErrAlreadyClosed},
	}
	for _, tc := range cases {
		if got := mapPollRepoError(tc.in); !errors.Is(got, tc.want) {
			t.Fatalf("expected %v for %v, got %v", tc.want, tc.in, got)
		}
	}
	var vErr *ValidationError
	if !errors.As(mapPollRepoError(persistence.ErrConstraintViolation), &vErr) {
		t.Fatalf("expected constraint violations to map to ValidationError")
	}
}
