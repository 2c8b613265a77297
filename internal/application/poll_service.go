package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/recommendation"
	"github.com/example/weekend-scheduler/internal/recurrence"
)

// PollService owns poll creation and the open to closed transition.
type PollService struct {
	store       PollStore
	collab      Collaborators
	status      statusBuilder
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewPollService constructs a poll service with the provided dependencies.
func NewPollService(store PollStore, collab Collaborators, idGenerator func() string, now func() time.Time) *PollService {
	return NewPollServiceWithLogger(store, collab, idGenerator, now, nil)
}

// NewPollServiceWithLogger constructs a poll service with a specified logger.
func NewPollServiceWithLogger(store PollStore, collab Collaborators, idGenerator func() string, now func() time.Time, logger *slog.Logger) *PollService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	collab = collab.withDefaults()
	return &PollService{
		store:       store,
		collab:      collab,
		status:      statusBuilder{store: store, collab: collab},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *PollService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "PollService", operation, attrs...)
}

// CreatePoll opens a poll in the channel with a deadline at the next deadline
// slot after now in the guild zone.
func (s *PollService) CreatePoll(ctx context.Context, params CreatePollParams) (poll Poll, err error) {
	if s == nil {
		err = fmt.Errorf("PollService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreatePoll", "guild_id", params.GuildID, "channel_id", params.ChannelID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create poll", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("poll_id", poll.ID).InfoContext(ctx, "poll created", "deadline", poll.Deadline)
	}()

	if strings.TrimSpace(params.GuildID) == "" {
		vErr := &ValidationError{}
		vErr.add("guild_id", "guild is required")
		err = vErr
		return
	}

	now := s.now()
	var config GuildConfig
	config, err = s.status.configFor(ctx, params.GuildID, now)
	if err != nil {
		return
	}
	return s.create(ctx, config, params.ChannelID, now)
}

func (s *PollService) create(ctx context.Context, config GuildConfig, channelID string, now time.Time) (Poll, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		channelID = config.SchedulingChannelID
	}
	if channelID == "" {
		vErr := &ValidationError{}
		vErr.add("channel_id", "channel is required when the guild has no scheduling channel")
		return Poll{}, vErr
	}

	if _, err := s.store.GetOpenPollForChannel(ctx, channelID); err == nil {
		return Poll{}, ErrConflict
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return Poll{}, err
	}

	loc, err := s.collab.Zones.Resolve(config.DefaultTimezone)
	if err != nil {
		return Poll{}, fmt.Errorf("%w: %w", ErrUnknownZone, err)
	}
	deadline := recurrence.NewEngine(loc).Next(config.DeadlineSlot(), now)

	poll := Poll{
		ID:        s.idGenerator(),
		GuildID:   config.GuildID,
		ChannelID: channelID,
		State:     PollStateOpen,
		CreatedAt: now,
		Deadline:  deadline.UTC(),
	}
	if err := s.store.CreatePoll(ctx, toPollRecord(poll)); err != nil {
		return Poll{}, mapPollRepoError(err)
	}

	if status, _, err := s.status.build(ctx, toPollRecord(poll), now, s.logger); err == nil {
		s.collab.Notifier.PollCreated(ctx, status)
	}
	return poll, nil
}

// ClosePoll closes an open poll and publishes the final summary. A second
// call reports ErrAlreadyClosed and publishes nothing.
func (s *PollService) ClosePoll(ctx context.Context, pollID string) (PollSummary, error) {
	if s == nil {
		return PollSummary{}, fmt.Errorf("PollService is nil")
	}
	return s.close(ctx, pollID, CloseReasonManual, true)
}

// CloseActive closes the channel's open poll.
func (s *PollService) CloseActive(ctx context.Context, channelID string) (PollSummary, error) {
	if s == nil {
		return PollSummary{}, fmt.Errorf("PollService is nil")
	}
	record, err := s.store.GetOpenPollForChannel(ctx, channelID)
	if err != nil {
		err = mapPollRepoError(err)
		s.loggerWith(ctx, "CloseActive", "channel_id", channelID).
			ErrorContext(ctx, "failed to find open poll", "error", err, "error_kind", ErrorKind(err))
		return PollSummary{}, err
	}
	return s.close(ctx, record.ID, CloseReasonManual, true)
}

// close performs the conditional transition under the poll lock so a close
// racing a submission resolves in lock order.
func (s *PollService) close(ctx context.Context, pollID string, reason CloseReason, announce bool) (summary PollSummary, err error) {
	logger := s.loggerWith(ctx, "ClosePoll", "poll_id", pollID, "reason", string(reason))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to close poll", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "poll closed", "recommendation", string(summary.Status.Recommendation.Outcome))
	}()

	now := s.now()
	unlock := s.collab.Locks.Lock(pollID)
	before, gErr := s.store.GetPoll(ctx, pollID)
	if gErr != nil {
		unlock()
		err = mapPollRepoError(gErr)
		return
	}
	if err = s.store.ClosePoll(ctx, pollID, now, string(reason)); err != nil {
		unlock()
		err = mapPollRepoError(err)
		return
	}
	unlock()

	// A closed poll accepts no further writes, so the final status can be
	// computed outside the lock.
	record, gErr := s.store.GetPoll(ctx, pollID)
	if gErr != nil {
		logger.WarnContext(ctx, "failed to reload closed poll", "error", gErr)
		record = before
		record.State = persistence.PollStateClosed
		record.ClosedAt = &now
		record.CloseReason = string(reason)
	}
	status, _, bErr := s.status.build(ctx, record, now, logger)
	if bErr != nil {
		// The transition is committed; report it with what is known.
		logger.WarnContext(ctx, "failed to compute final status", "error", bErr)
		status = PollStatus{Poll: PollFromRecord(record)}
	}
	summary = PollSummary{Status: status, Reason: reason}
	if announce {
		s.collab.Notifier.PollClosed(ctx, summary)
	}
	return summary, nil
}

// Purge force closes every open poll in scope without publishing summaries
// and returns how many it closed. An empty scope covers all channels.
func (s *PollService) Purge(ctx context.Context, scope PurgeScope) (closed int, err error) {
	if s == nil {
		err = fmt.Errorf("PollService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Purge", "channel_id", scope.ChannelID, "poll_id", scope.PollID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to purge polls", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "polls purged", "closed", closed)
	}()

	var targets []persistence.Poll
	targets, err = s.purgeTargets(ctx, scope)
	if err != nil {
		return
	}

	for _, target := range targets {
		if _, cErr := s.close(ctx, target.ID, CloseReasonPurged, false); cErr != nil {
			if errors.Is(cErr, ErrAlreadyClosed) || errors.Is(cErr, ErrNotFound) {
				continue
			}
			err = cErr
			return
		}
		closed++
	}
	return closed, nil
}

func (s *PollService) purgeTargets(ctx context.Context, scope PurgeScope) ([]persistence.Poll, error) {
	switch {
	case scope.PollID != "":
		record, err := s.store.GetPoll(ctx, scope.PollID)
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if record.State != persistence.PollStateOpen {
			return nil, nil
		}
		return []persistence.Poll{record}, nil
	case scope.ChannelID != "":
		record, err := s.store.GetOpenPollForChannel(ctx, scope.ChannelID)
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []persistence.Poll{record}, nil
	default:
		return s.store.ListOpenPolls(ctx)
	}
}

// CloseExpired closes every open poll whose deadline is at or before now and
// publishes their summaries.
func (s *PollService) CloseExpired(ctx context.Context) ([]PollSummary, error) {
	if s == nil {
		return nil, fmt.Errorf("PollService is nil")
	}
	open, err := s.store.ListOpenPolls(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open polls: %w", err)
	}

	now := s.now()
	var summaries []PollSummary
	var errs []error
	for _, record := range open {
		if record.Deadline.After(now) {
			continue
		}
		summary, cErr := s.close(ctx, record.ID, CloseReasonDeadline, true)
		if errors.Is(cErr, ErrAlreadyClosed) {
			continue
		}
		if cErr != nil {
			errs = append(errs, fmt.Errorf("poll %s: %w", record.ID, cErr))
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, errors.Join(errs...)
}

// EnsureWeeklyPolls opens the weekly poll for each configured guild whose
// poll slot has passed since its channel last saw a poll. The decision is
// derived from stored polls only, so a restart never skips or repeats a week.
func (s *PollService) EnsureWeeklyPolls(ctx context.Context) ([]Poll, error) {
	if s == nil {
		return nil, fmt.Errorf("PollService is nil")
	}
	records, err := s.store.ListGuildConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list guild configs: %w", err)
	}

	now := s.now()
	var created []Poll
	var errs []error
	for _, record := range records {
		config := GuildConfigFromRecord(record)
		if config.SchedulingChannelID == "" {
			continue
		}
		due, dErr := s.weeklyPollDue(ctx, config, now)
		if dErr != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", config.GuildID, dErr))
			continue
		}
		if !due {
			continue
		}

		poll, cErr := s.create(ctx, config, config.SchedulingChannelID, now)
		if errors.Is(cErr, ErrConflict) {
			continue
		}
		if cErr != nil {
			errs = append(errs, fmt.Errorf("guild %s: %w", config.GuildID, cErr))
			continue
		}
		s.loggerWith(ctx, "EnsureWeeklyPolls", "guild_id", config.GuildID, "poll_id", poll.ID).
			InfoContext(ctx, "weekly poll opened")
		created = append(created, poll)
	}
	return created, errors.Join(errs...)
}

func (s *PollService) weeklyPollDue(ctx context.Context, config GuildConfig, now time.Time) (bool, error) {
	loc, err := s.collab.Zones.Resolve(config.DefaultTimezone)
	if err != nil {
		return false, err
	}
	occurrence := recurrence.NewEngine(loc).Previous(config.PollSlot(), now)
	if !occurrence.After(config.CreatedAt) {
		return false, nil
	}

	latest, err := s.store.LatestPollForChannel(ctx, config.SchedulingChannelID)
	if errors.Is(err, persistence.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if latest.State == persistence.PollStateOpen {
		return false, nil
	}
	return latest.CreatedAt.Before(occurrence), nil
}

// GetActivePoll returns the channel's open poll; ok is false when none exists.
func (s *PollService) GetActivePoll(ctx context.Context, channelID string) (poll Poll, ok bool, err error) {
	if s == nil {
		err = fmt.Errorf("PollService is nil")
		return
	}
	record, err := s.store.GetOpenPollForChannel(ctx, channelID)
	if errors.Is(err, persistence.ErrNotFound) {
		return Poll{}, false, nil
	}
	if err != nil {
		return Poll{}, false, err
	}
	return PollFromRecord(record), true, nil
}

// GetPoll returns a poll in any state.
func (s *PollService) GetPoll(ctx context.Context, pollID string) (Poll, error) {
	if s == nil {
		return Poll{}, fmt.Errorf("PollService is nil")
	}
	record, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		return Poll{}, mapPollRepoError(err)
	}
	return PollFromRecord(record), nil
}

// ListOpenPolls returns open polls in creation order.
func (s *PollService) ListOpenPolls(ctx context.Context) ([]Poll, error) {
	if s == nil {
		return nil, fmt.Errorf("PollService is nil")
	}
	records, err := s.store.ListOpenPolls(ctx)
	if err != nil {
		return nil, err
	}
	polls := make([]Poll, len(records))
	for i, r := range records {
		polls[i] = PollFromRecord(r)
	}
	return polls, nil
}

// Status recomputes the full view of a poll.
func (s *PollService) Status(ctx context.Context, pollID string) (PollStatus, error) {
	status, _, err := s.Snapshot(ctx, pollID)
	return status, err
}

// Snapshot returns the poll status together with the guild config it was
// evaluated under. It takes no poll lock, so callers already holding one may
// use it.
func (s *PollService) Snapshot(ctx context.Context, pollID string) (PollStatus, GuildConfig, error) {
	if s == nil {
		return PollStatus{}, GuildConfig{}, fmt.Errorf("PollService is nil")
	}
	logger := s.loggerWith(ctx, "Status", "poll_id", pollID)
	record, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		err = mapPollRepoError(err)
		logger.ErrorContext(ctx, "failed to load poll", "error", err, "error_kind", ErrorKind(err))
		return PollStatus{}, GuildConfig{}, err
	}
	status, config, err := s.status.build(ctx, record, s.now(), logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute poll status", "error", err, "error_kind", ErrorKind(err))
		return PollStatus{}, GuildConfig{}, err
	}
	return status, config, nil
}

// ActiveStatus returns the status of the channel's open poll, or ErrNotFound.
func (s *PollService) ActiveStatus(ctx context.Context, channelID string) (PollStatus, error) {
	if s == nil {
		return PollStatus{}, fmt.Errorf("PollService is nil")
	}
	record, err := s.store.GetOpenPollForChannel(ctx, channelID)
	if err != nil {
		return PollStatus{}, mapPollRepoError(err)
	}
	return s.Status(ctx, record.ID)
}

// GetFeasibility evaluates the poll's current responses.
func (s *PollService) GetFeasibility(ctx context.Context, pollID string) (feasibility.Result, error) {
	status, err := s.Status(ctx, pollID)
	if err != nil {
		return feasibility.Result{}, err
	}
	return status.Feasibility, nil
}

// GetRecommendation returns the recommended day for the poll.
func (s *PollService) GetRecommendation(ctx context.Context, pollID string) (recommendation.Recommendation, error) {
	status, err := s.Status(ctx, pollID)
	if err != nil {
		return recommendation.Recommendation{}, err
	}
	return status.Recommendation, nil
}
