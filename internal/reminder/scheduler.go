// Package reminder drives the periodic work of the scheduler: weekly poll
// creation, deadline closing and reminder emission.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/weekend-scheduler/internal/application"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/timezone"
)

// Lifecycle is the part of the poll service the scheduler drives.
type Lifecycle interface {
	EnsureWeeklyPolls(ctx context.Context) ([]application.Poll, error)
	CloseExpired(ctx context.Context) ([]application.PollSummary, error)
	ListOpenPolls(ctx context.Context) ([]application.Poll, error)
	Snapshot(ctx context.Context, pollID string) (application.PollStatus, application.GuildConfig, error)
}

// Store is the persistence the scheduler reads preferences from and records
// fired intervals in.
type Store interface {
	persistence.PreferenceRepository
	persistence.ReminderRepository
}

// Options tunes a Scheduler. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	Locks    *application.PollLocks
	Zones    *timezone.Resolver
	Now      func() time.Time
	Logger   *slog.Logger
}

// TickReport summarises one pass.
type TickReport struct {
	Created   int
	Closed    int
	Reminders int
}

// Scheduler emits reminder intents for participants who have not answered.
// Fired intervals are persisted, so a restarted scheduler does not repeat
// reminders already sent.
type Scheduler struct {
	store    Store
	polls    Lifecycle
	sink     application.ReminderSink
	locks    *application.PollLocks
	zones    *timezone.Resolver
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewScheduler constructs a scheduler. The locks in opts must be the ones the
// poll and response services use.
func NewScheduler(store Store, polls Lifecycle, sink application.ReminderSink, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Locks == nil {
		opts.Locks = application.NewPollLocks()
	}
	if opts.Zones == nil {
		opts.Zones = timezone.NewResolver()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		store:    store,
		polls:    polls,
		sink:     sink,
		locks:    opts.Locks,
		zones:    opts.Zones,
		interval: opts.Interval,
		now:      opts.Now,
		logger:   opts.Logger.With("component", "ReminderScheduler"),
	}
}

// Run ticks until ctx is cancelled. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "reminder scheduler started", "interval", s.interval.String())
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reminder scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick opens due weekly polls, closes polls past their deadline and then
// emits reminders for the polls still open. A failing stage does not stop
// the later ones; their errors are joined.
func (s *Scheduler) Tick(ctx context.Context) (TickReport, error) {
	var (
		report TickReport
		errs   []error
	)

	created, err := s.polls.EnsureWeeklyPolls(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("weekly polls: %w", err))
	}
	report.Created = len(created)

	closed, err := s.polls.CloseExpired(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("close expired: %w", err))
	}
	report.Closed = len(closed)

	open, err := s.polls.ListOpenPolls(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list open polls: %w", err))
	}
	now := s.now()
	for _, poll := range open {
		sent, err := s.remindPoll(ctx, poll.ID, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", poll.ID, err))
			continue
		}
		report.Reminders += sent
	}

	if report.Created > 0 || report.Closed > 0 || report.Reminders > 0 {
		s.logger.InfoContext(ctx, "tick completed",
			"created", report.Created, "closed", report.Closed, "reminders", report.Reminders)
	}
	return report, errors.Join(errs...)
}

func (s *Scheduler) remindPoll(ctx context.Context, pollID string, now time.Time) (int, error) {
	unlock := s.locks.Lock(pollID)
	defer unlock()

	status, config, err := s.polls.Snapshot(ctx, pollID)
	if errors.Is(err, application.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	// Closed between listing and locking.
	if !status.Poll.IsOpen() {
		return 0, nil
	}

	crossed := crossedIntervals(config.ReminderIntervals, now.Sub(status.Poll.CreatedAt))
	if len(crossed) == 0 {
		return 0, nil
	}
	// Nothing is claimed, so the interval fires once the roster is back.
	if status.RosterUnavailable {
		return 0, fmt.Errorf("guild %s: %w", status.Poll.GuildID, application.ErrRosterUnavailable)
	}
	// Without a roster the broadcast stops once enough people have answered.
	if !status.Feasibility.RosterTracked && len(status.Responses) >= status.Feasibility.Threshold {
		return 0, nil
	}
	prefs, err := s.preferences(ctx, status.Poll.GuildID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, participant := range recipients(status) {
		fired := -1
		for _, idx := range crossed {
			ok, err := s.store.ClaimReminder(ctx, persistence.ReminderMark{
				PollID:        pollID,
				ParticipantID: participant,
				IntervalIndex: idx,
				FiredAt:       now,
			})
			if err != nil {
				return sent, fmt.Errorf("claim reminder: %w", err)
			}
			if ok {
				fired = idx
			}
		}
		// Catch-up after downtime claims every crossed interval but sends
		// one reminder.
		if fired < 0 {
			continue
		}
		s.sink.Remind(ctx, s.intent(status, config, prefs, participant, fired, false))
		sent++
	}
	return sent, nil
}

// RemindNow reminds every pending participant of an open poll regardless of
// interval timing. It marks every crossed interval and the next upcoming one
// so the following tick does not repeat the reminder.
func (s *Scheduler) RemindNow(ctx context.Context, pollID string) (sent int, err error) {
	logger := s.logger.With("operation", "RemindNow", "poll_id", pollID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to send reminders", "error", err, "error_kind", application.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "manual reminders sent", "sent", sent)
	}()

	unlock := s.locks.Lock(pollID)
	defer unlock()

	var (
		status application.PollStatus
		config application.GuildConfig
	)
	status, config, err = s.polls.Snapshot(ctx, pollID)
	if err != nil {
		return 0, err
	}
	if !status.Poll.IsOpen() {
		return 0, application.ErrPollClosed
	}
	if status.RosterUnavailable {
		return 0, fmt.Errorf("guild %s: %w", status.Poll.GuildID, application.ErrRosterUnavailable)
	}

	now := s.now()
	elapsed := now.Sub(status.Poll.CreatedAt)
	marks := crossedIntervals(config.ReminderIntervals, elapsed)
	upcoming := nextInterval(config.ReminderIntervals, elapsed)
	if upcoming >= 0 {
		marks = append(marks, upcoming)
	}

	var prefs map[string]persistence.TimezonePreference
	prefs, err = s.preferences(ctx, status.Poll.GuildID)
	if err != nil {
		return 0, err
	}

	for _, participant := range recipients(status) {
		for _, idx := range marks {
			if _, cErr := s.store.ClaimReminder(ctx, persistence.ReminderMark{
				PollID:        pollID,
				ParticipantID: participant,
				IntervalIndex: idx,
				FiredAt:       now,
			}); cErr != nil {
				err = fmt.Errorf("claim reminder: %w", cErr)
				return sent, err
			}
		}
		s.sink.Remind(ctx, s.intent(status, config, prefs, participant, upcoming, true))
		sent++
	}
	return sent, nil
}

func (s *Scheduler) preferences(ctx context.Context, guildID string) (map[string]persistence.TimezonePreference, error) {
	list, err := s.store.ListPreferences(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	prefs := make(map[string]persistence.TimezonePreference, len(list))
	for _, p := range list {
		prefs[p.ParticipantID] = p
	}
	return prefs, nil
}

func (s *Scheduler) intent(status application.PollStatus, config application.GuildConfig, prefs map[string]persistence.TimezonePreference, participant string, interval int, manual bool) application.ReminderIntent {
	intent := application.ReminderIntent{
		PollID:        status.Poll.ID,
		GuildID:       status.Poll.GuildID,
		ChannelID:     status.Poll.ChannelID,
		ParticipantID: participant,
		Mode:          config.ReminderMode,
		IntervalIndex: interval,
		Deadline:      status.Poll.Deadline,
		Zone:          config.DefaultTimezone,
		Manual:        manual,
	}
	if intent.Broadcast() {
		intent.Mode = application.ReminderModeChannel
		return intent
	}
	pref, ok := prefs[participant]
	if !ok {
		return intent
	}
	if pref.DirectReminders {
		intent.Mode = application.ReminderModeDirect
	}
	if local, err := s.zones.Localize(status.Poll.Deadline, pref.Zone); err == nil {
		intent.LocalizedDeadline = &local
		intent.Zone = pref.Zone
	}
	return intent
}

// recipients lists the pending roster members, or the channel broadcast
// target when no roster is tracked.
func recipients(status application.PollStatus) []string {
	if !status.Feasibility.RosterTracked {
		return []string{application.BroadcastParticipant}
	}
	return status.Pending()
}

func crossedIntervals(intervals []time.Duration, elapsed time.Duration) []int {
	var crossed []int
	for i, d := range intervals {
		if elapsed >= d {
			crossed = append(crossed, i)
		}
	}
	return crossed
}

func nextInterval(intervals []time.Duration, elapsed time.Duration) int {
	for i, d := range intervals {
		if elapsed < d {
			return i
		}
	}
	return -1
}
