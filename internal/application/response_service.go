package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// ResponseService records participant answers with last-write-wins
// semantics keyed on each submission's own timestamp.
type ResponseService struct {
	store  PollStore
	collab Collaborators
	status statusBuilder
	now    func() time.Time
	logger *slog.Logger
}

// NewResponseService constructs a response service with the provided dependencies.
func NewResponseService(store PollStore, collab Collaborators, now func() time.Time) *ResponseService {
	return NewResponseServiceWithLogger(store, collab, now, nil)
}

// NewResponseServiceWithLogger constructs a response service with a specified logger.
func NewResponseServiceWithLogger(store PollStore, collab Collaborators, now func() time.Time, logger *slog.Logger) *ResponseService {
	if now == nil {
		now = time.Now
	}
	collab = collab.withDefaults()
	return &ResponseService{
		store:  store,
		collab: collab,
		status: statusBuilder{store: store, collab: collab},
		now:    now,
		logger: defaultLogger(logger),
	}
}

func (s *ResponseService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ResponseService", operation, attrs...)
}

// SubmitResponse stores a complete answer, replacing both day flags. A
// submission older than the stored one is kept out silently and reported
// with Applied false.
func (s *ResponseService) SubmitResponse(ctx context.Context, params SubmitResponseParams) (result SubmitResult, err error) {
	if s == nil {
		err = fmt.Errorf("ResponseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SubmitResponse",
		"poll_id", params.PollID,
		"participant_id", params.ParticipantID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to submit response", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "response submitted", "applied", result.Applied, "responses", result.Count)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.PollID) == "" {
		vErr.add("poll_id", "poll is required")
	}
	if strings.TrimSpace(params.ParticipantID) == "" {
		vErr.add("participant_id", "participant is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	submitted := params.SubmittedAt
	if submitted.IsZero() {
		submitted = s.now()
	}
	label := strings.TrimSpace(params.DisplayName)
	if label == "" {
		label = params.ParticipantID
	}

	record := persistence.Response{
		PollID:           params.PollID,
		ParticipantID:    params.ParticipantID,
		DisplayName:      label,
		Saturday:         params.Saturday,
		Sunday:           params.Sunday,
		FirstSubmittedAt: submitted,
		UpdatedAt:        submitted,
	}
	result, err = s.upsert(ctx, record)
	if err != nil {
		return
	}
	// The update status may resolve the roster, so it is built after the
	// poll lock is released.
	if result.Applied {
		s.publishUpdate(ctx, params.PollID, logger)
	}
	return result, nil
}

func (s *ResponseService) upsert(ctx context.Context, record persistence.Response) (SubmitResult, error) {
	unlock := s.collab.Locks.Lock(record.PollID)
	defer unlock()

	applied, err := s.store.UpsertResponse(ctx, record)
	if err != nil {
		return SubmitResult{}, mapResponseRepoError(err)
	}
	stored, err := s.store.ListResponses(ctx, record.PollID)
	if err != nil {
		return SubmitResult{}, err
	}
	result := SubmitResult{Applied: applied, Count: len(stored)}
	for _, r := range stored {
		if r.ParticipantID == record.ParticipantID {
			result.Response = ResponseFromRecord(r)
			break
		}
	}
	return result, nil
}

// WithdrawResponse removes a participant's answer. Withdrawing an answer
// that does not exist is a no-op reported as false.
func (s *ResponseService) WithdrawResponse(ctx context.Context, pollID, participantID string) (removed bool, err error) {
	if s == nil {
		err = fmt.Errorf("ResponseService is nil")
		return
	}

	logger := s.loggerWith(ctx, "WithdrawResponse", "poll_id", pollID, "participant_id", participantID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to withdraw response", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "response withdrawn", "removed", removed)
	}()

	unlock := s.collab.Locks.Lock(pollID)
	removed, err = s.store.DeleteResponse(ctx, pollID, participantID)
	unlock()
	if err != nil {
		err = mapResponseRepoError(err)
		return
	}
	if removed {
		s.publishUpdate(ctx, pollID, logger)
	}
	return removed, nil
}

// ListResponses returns a poll's responses in first-submission order.
func (s *ResponseService) ListResponses(ctx context.Context, pollID string) ([]Response, error) {
	if s == nil {
		return nil, fmt.Errorf("ResponseService is nil")
	}
	if _, err := s.store.GetPoll(ctx, pollID); err != nil {
		return nil, mapResponseRepoError(err)
	}
	stored, err := s.store.ListResponses(ctx, pollID)
	if err != nil {
		return nil, err
	}
	return responsesFromRecords(stored), nil
}

func (s *ResponseService) publishUpdate(ctx context.Context, pollID string, logger *slog.Logger) {
	record, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		logger.WarnContext(ctx, "failed to reload poll for update", "error", err)
		return
	}
	status, _, err := s.status.build(ctx, record, s.now(), logger)
	if err != nil {
		logger.WarnContext(ctx, "failed to compute poll status", "error", err)
		return
	}
	s.collab.Notifier.PollUpdated(ctx, status)
}
