package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/weekend-scheduler/internal/feasibility"
	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/recommendation"
	"github.com/example/weekend-scheduler/internal/timezone"
)

// statusBuilder recomputes feasibility, recommendation and localized
// deadlines for a poll from stored state.
type statusBuilder struct {
	store  PollStore
	collab Collaborators
}

// configFor loads the guild config, or the defaults when the guild was never
// initialised.
func (b statusBuilder) configFor(ctx context.Context, guildID string, now time.Time) (GuildConfig, error) {
	record, err := b.store.GetGuildConfig(ctx, guildID)
	if errors.Is(err, persistence.ErrNotFound) {
		return b.collab.Defaults.Config(guildID, now), nil
	}
	if err != nil {
		return GuildConfig{}, fmt.Errorf("load guild config: %w", err)
	}
	return GuildConfigFromRecord(record), nil
}

// roster resolves the tracked role. A nil roster disables roster mode; a
// directory failure degrades to that mode and reports unavailable.
func (b statusBuilder) roster(ctx context.Context, config GuildConfig, logger *slog.Logger) (roster *feasibility.Roster, unavailable bool) {
	if config.TrackedRoleID == "" || b.collab.Roster == nil {
		return nil, false
	}
	members, err := b.collab.Roster.ResolveRoster(ctx, config.GuildID, config.TrackedRoleID)
	if err != nil {
		logger.WarnContext(ctx, "roster lookup failed, evaluating without roster",
			"error", err, "role_id", config.TrackedRoleID)
		return nil, true
	}
	return &feasibility.Roster{Members: members}, false
}

func (b statusBuilder) build(ctx context.Context, record persistence.Poll, now time.Time, logger *slog.Logger) (PollStatus, GuildConfig, error) {
	config, err := b.configFor(ctx, record.GuildID, now)
	if err != nil {
		return PollStatus{}, GuildConfig{}, err
	}

	stored, err := b.store.ListResponses(ctx, record.ID)
	if err != nil {
		return PollStatus{}, GuildConfig{}, fmt.Errorf("list responses: %w", err)
	}
	responses := responsesFromRecords(stored)

	roster, unavailable := b.roster(ctx, config, logger)
	result := feasibility.Evaluate(feasibilityInputs(responses), roster, config.MinParticipants)
	status := PollStatus{
		Poll:              PollFromRecord(record),
		Responses:         responses,
		Feasibility:       result,
		Recommendation:    recommendation.FromResult(result),
		GuildZone:         config.DefaultTimezone,
		GuildDeadline:     record.Deadline,
		RosterUnavailable: unavailable,
	}
	if local, err := b.collab.Zones.Localize(record.Deadline, config.DefaultTimezone); err == nil {
		status.GuildDeadline = local
	}

	deadlines, err := b.zoneDeadlines(ctx, record.GuildID, record.Deadline)
	if err != nil {
		return PollStatus{}, GuildConfig{}, err
	}
	status.Deadlines = deadlines
	return status, config, nil
}

// zoneDeadlines lists the deadline once per zone chosen by a participant of
// the guild. Preferences naming a zone that no longer resolves are skipped.
func (b statusBuilder) zoneDeadlines(ctx context.Context, guildID string, deadline time.Time) ([]ZoneDeadline, error) {
	prefs, err := b.store.ListPreferences(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	assignments := make([]timezone.Assignment, 0, len(prefs))
	for _, p := range prefs {
		assignments = append(assignments, timezone.Assignment{ParticipantID: p.ParticipantID, Zone: p.Zone})
	}

	var out []ZoneDeadline
	for _, group := range timezone.GroupByZone(assignments) {
		local, err := b.collab.Zones.Localize(deadline, group.Zone)
		if err != nil {
			continue
		}
		out = append(out, ZoneDeadline{Zone: group.Zone, Deadline: local, Participants: group.Participants})
	}
	return out, nil
}
