package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/weekend-scheduler/internal/application"
)

type configService interface {
	InitGuild(ctx context.Context, guildID, channelID string) (application.GuildConfig, error)
	GetConfig(ctx context.Context, guildID string) (application.GuildConfig, error)
	UpdateConfig(ctx context.Context, guildID string, patch application.ConfigPatch) (application.GuildConfig, error)
	SetTimezonePreference(ctx context.Context, guildID, participantID, zone string, directReminders bool) (application.TimezonePreference, error)
	GetTimezonePreference(ctx context.Context, guildID, participantID string) (application.TimezonePreference, error)
	ClearTimezonePreference(ctx context.Context, guildID, participantID string) (bool, error)
}

type pollCreator interface {
	CreatePoll(ctx context.Context, params application.CreatePollParams) (application.Poll, error)
	Status(ctx context.Context, pollID string) (application.PollStatus, error)
}

// GuildHandler serves guild configuration, poll creation and timezone
// preferences.
type GuildHandler struct {
	configs   configService
	polls     pollCreator
	responder responder
	logger    *slog.Logger
}

func NewGuildHandler(configs configService, polls pollCreator, logger *slog.Logger) *GuildHandler {
	return &GuildHandler{configs: configs, polls: polls, responder: newResponder(logger), logger: logger}
}

func (h *GuildHandler) Init(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("guild")
	var req channelRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	config, err := h.configs.InitGuild(r.Context(), guildID, req.ChannelID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "GuildHandler", "Init", "guild_id", guildID).
		InfoContext(r.Context(), "guild initialised via api")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newConfigDTO(config))
}

func (h *GuildHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.configs.GetConfig(r.Context(), r.PathValue("guild"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newConfigDTO(config))
}

func (h *GuildHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configPatchRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	config, err := h.configs.UpdateConfig(r.Context(), r.PathValue("guild"), req.toPatch())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newConfigDTO(config))
}

func (h *GuildHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req channelRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	poll, err := h.polls.CreatePoll(r.Context(), application.CreatePollParams{
		GuildID:   r.PathValue("guild"),
		ChannelID: strings.TrimSpace(req.ChannelID),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	status, err := h.polls.Status(r.Context(), poll.ID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, newStatusDTO(status))
}

func (h *GuildHandler) GetTimezone(w http.ResponseWriter, r *http.Request) {
	pref, err := h.configs.GetTimezonePreference(r.Context(), r.PathValue("guild"), r.PathValue("participant"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newTimezoneDTO(pref))
}

func (h *GuildHandler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := decodeOptional(r, &req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	pref, err := h.configs.SetTimezonePreference(r.Context(), r.PathValue("guild"), r.PathValue("participant"), req.Zone, req.DirectReminders)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, newTimezoneDTO(pref))
}

func (h *GuildHandler) ClearTimezone(w http.ResponseWriter, r *http.Request) {
	if _, err := h.configs.ClearTimezonePreference(r.Context(), r.PathValue("guild"), r.PathValue("participant")); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
