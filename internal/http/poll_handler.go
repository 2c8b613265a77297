package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/weekend-scheduler/internal/application"
)

type pollService interface {
	Status(ctx context.Context, pollID string) (application.PollStatus, error)
	ActiveStatus(ctx context.Context, channelID string) (application.PollStatus, error)
	ClosePoll(ctx context.Context, pollID string) (application.PollSummary, error)
	CloseActive(ctx context.Context, channelID string) (application.PollSummary, error)
	Purge(ctx context.Context, scope application.PurgeScope) (int, error)
}

type reminderService interface {
	RemindNow(ctx context.Context, pollID string) (int, error)
}

// PollHandler serves poll status and lifecycle transitions.
type PollHandler struct {
	polls     pollService
	reminders reminderService
	responder responder
	logger    *slog.Logger
}

func NewPollHandler(polls pollService, reminders reminderService, logger *slog.Logger) *PollHandler {
	return &PollHandler{polls: polls, reminders: reminders, responder: newResponder(logger), logger: logger}
}

func (h *PollHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.polls.Status(r.Context(), r.PathValue("poll"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newStatusDTO(status))
}

func (h *PollHandler) ActiveStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.polls.ActiveStatus(r.Context(), r.PathValue("channel"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newStatusDTO(status))
}

func (h *PollHandler) Close(w http.ResponseWriter, r *http.Request) {
	summary, err := h.polls.ClosePoll(r.Context(), r.PathValue("poll"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newSummaryDTO(summary))
}

func (h *PollHandler) CloseActive(w http.ResponseWriter, r *http.Request) {
	summary, err := h.polls.CloseActive(r.Context(), r.PathValue("channel"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newSummaryDTO(summary))
}

func (h *PollHandler) Purge(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	scope := application.PurgeScope{
		ChannelID: strings.TrimSpace(req.ChannelID),
		PollID:    strings.TrimSpace(req.PollID),
	}
	closed, err := h.polls.Purge(r.Context(), scope)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "PollHandler", "Purge", "channel_id", scope.ChannelID, "poll_id", scope.PollID).
		InfoContext(r.Context(), "purge requested", "closed", closed)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, purgeResponse{Closed: closed})
}

func (h *PollHandler) Remind(w http.ResponseWriter, r *http.Request) {
	if h.reminders == nil {
		h.responder.writeError(r.Context(), w, http.StatusServiceUnavailable, nil)
		return
	}
	sent, err := h.reminders.RemindNow(r.Context(), r.PathValue("poll"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, remindResponse{Sent: sent})
}
