package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/weekend-scheduler/internal/application"
)

type responseService interface {
	SubmitResponse(ctx context.Context, params application.SubmitResponseParams) (application.SubmitResult, error)
	WithdrawResponse(ctx context.Context, pollID, participantID string) (bool, error)
	ListResponses(ctx context.Context, pollID string) ([]application.Response, error)
}

// ResponseHandler serves participant answers.
type ResponseHandler struct {
	service   responseService
	responder responder
}

func NewResponseHandler(service responseService, logger *slog.Logger) *ResponseHandler {
	return &ResponseHandler{service: service, responder: newResponder(logger)}
}

func (h *ResponseHandler) List(w http.ResponseWriter, r *http.Request) {
	responses, err := h.service.ListResponses(r.Context(), r.PathValue("poll"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newResponseDTOs(responses))
}

func (h *ResponseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params := application.SubmitResponseParams{
		PollID:        r.PathValue("poll"),
		ParticipantID: r.PathValue("participant"),
		DisplayName:   req.DisplayName,
		Saturday:      req.Saturday,
		Sunday:        req.Sunday,
	}
	if req.SubmittedAt != nil {
		params.SubmittedAt = *req.SubmittedAt
	}

	result, err := h.service.SubmitResponse(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, submitResponse{
		Response: newResponseDTO(result.Response),
		Applied:  result.Applied,
		Count:    result.Count,
	})
}

func (h *ResponseHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	// Withdrawing an absent answer is not an error.
	if _, err := h.service.WithdrawResponse(r.Context(), r.PathValue("poll"), r.PathValue("participant")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
