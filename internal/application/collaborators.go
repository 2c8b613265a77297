package application

import (
	"context"

	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/timezone"
)

// Notifier receives poll lifecycle events for rendering. Implementations must
// not block; delivery happens asynchronously.
type Notifier interface {
	PollCreated(ctx context.Context, status PollStatus)
	PollUpdated(ctx context.Context, status PollStatus)
	PollClosed(ctx context.Context, summary PollSummary)
}

// ReminderSink receives reminder intents. It is fire and forget; retries
// belong to the delivery layer.
type ReminderSink interface {
	Remind(ctx context.Context, intent ReminderIntent)
}

// RosterResolver lists the members of a tracked role.
type RosterResolver interface {
	ResolveRoster(ctx context.Context, guildID, roleID string) ([]string, error)
}

// PollStore is the persistence a lifecycle or response service needs.
type PollStore interface {
	persistence.PollRepository
	persistence.ResponseRepository
	persistence.GuildConfigRepository
	persistence.PreferenceRepository
}

// Collaborators bundles the optional dependencies shared by the services and
// the reminder scheduler. Nil members are replaced with no-op versions.
type Collaborators struct {
	Notifier Notifier
	Roster   RosterResolver
	Locks    *PollLocks
	Zones    *timezone.Resolver
	Defaults GuildDefaults
}

func (c Collaborators) withDefaults() Collaborators {
	if c.Notifier == nil {
		c.Notifier = NopNotifier{}
	}
	if c.Locks == nil {
		c.Locks = NewPollLocks()
	}
	if c.Zones == nil {
		c.Zones = timezone.NewResolver()
	}
	if c.Defaults.Timezone == "" {
		c.Defaults = DefaultGuildDefaults("UTC")
	}
	return c
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) PollCreated(context.Context, PollStatus) {}
func (NopNotifier) PollUpdated(context.Context, PollStatus) {}
func (NopNotifier) PollClosed(context.Context, PollSummary) {}
