package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/persistence"
	"github.com/example/weekend-scheduler/internal/recurrence"
	"github.com/example/weekend-scheduler/internal/timezone"
)

// SettingsStore is the persistence ConfigService needs.
type SettingsStore interface {
	persistence.GuildConfigRepository
	persistence.PreferenceRepository
}

// ConfigService manages guild settings and participant timezone preferences.
type ConfigService struct {
	store    SettingsStore
	zones    *timezone.Resolver
	defaults GuildDefaults
	now      func() time.Time
	logger   *slog.Logger
}

// NewConfigService constructs a config service with the provided dependencies.
func NewConfigService(store SettingsStore, zones *timezone.Resolver, defaults GuildDefaults, now func() time.Time) *ConfigService {
	return NewConfigServiceWithLogger(store, zones, defaults, now, nil)
}

// NewConfigServiceWithLogger constructs a config service with a specified logger.
func NewConfigServiceWithLogger(store SettingsStore, zones *timezone.Resolver, defaults GuildDefaults, now func() time.Time, logger *slog.Logger) *ConfigService {
	if zones == nil {
		zones = timezone.NewResolver()
	}
	if defaults.Timezone == "" {
		defaults = DefaultGuildDefaults("UTC")
	}
	if now == nil {
		now = time.Now
	}
	return &ConfigService{store: store, zones: zones, defaults: defaults, now: now, logger: defaultLogger(logger)}
}

func (s *ConfigService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ConfigService", operation, attrs...)
}

// InitGuild creates the guild config with defaults, or points an existing
// config at a new scheduling channel.
func (s *ConfigService) InitGuild(ctx context.Context, guildID, channelID string) (config GuildConfig, err error) {
	if s == nil {
		err = fmt.Errorf("ConfigService is nil")
		return
	}

	logger := s.loggerWith(ctx, "InitGuild", "guild_id", guildID, "channel_id", channelID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to initialise guild", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "guild initialised")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(guildID) == "" {
		vErr.add("guild_id", "guild is required")
	}
	if strings.TrimSpace(channelID) == "" {
		vErr.add("channel_id", "channel is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	var record persistence.GuildConfig
	record, err = s.store.GetGuildConfig(ctx, guildID)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		config = s.defaults.Config(guildID, now)
	case err != nil:
		err = mapSettingsRepoError(err)
		return
	default:
		config = GuildConfigFromRecord(record)
		config.UpdatedAt = now
	}
	config.SchedulingChannelID = strings.TrimSpace(channelID)

	if err = s.store.SaveGuildConfig(ctx, toGuildConfigRecord(config)); err != nil {
		err = mapSettingsRepoError(err)
		return
	}
	return config, nil
}

// GetConfig returns a guild's configuration.
func (s *ConfigService) GetConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	if s == nil {
		return GuildConfig{}, fmt.Errorf("ConfigService is nil")
	}
	record, err := s.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		err = mapSettingsRepoError(err)
		s.loggerWith(ctx, "GetConfig", "guild_id", guildID).
			ErrorContext(ctx, "failed to load guild config", "error", err, "error_kind", ErrorKind(err))
		return GuildConfig{}, err
	}
	return GuildConfigFromRecord(record), nil
}

// ListConfigs returns every guild configuration.
func (s *ConfigService) ListConfigs(ctx context.Context) ([]GuildConfig, error) {
	if s == nil {
		return nil, fmt.Errorf("ConfigService is nil")
	}
	records, err := s.store.ListGuildConfigs(ctx)
	if err != nil {
		return nil, err
	}
	configs := make([]GuildConfig, len(records))
	for i, r := range records {
		configs[i] = GuildConfigFromRecord(r)
	}
	return configs, nil
}

// UpdateConfig validates and applies a patch. Every invalid field is
// reported together; nothing is written unless the whole patch is valid.
func (s *ConfigService) UpdateConfig(ctx context.Context, guildID string, patch ConfigPatch) (config GuildConfig, err error) {
	if s == nil {
		err = fmt.Errorf("ConfigService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateConfig", "guild_id", guildID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update guild config", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "guild config updated")
	}()

	var record persistence.GuildConfig
	record, err = s.store.GetGuildConfig(ctx, guildID)
	if err != nil {
		err = mapSettingsRepoError(err)
		return
	}
	config = GuildConfigFromRecord(record)

	vErr := s.applyPatch(&config, patch)
	if vErr.HasErrors() {
		if _, zoneBad := vErr.FieldErrors["default_timezone"]; zoneBad && len(vErr.FieldErrors) == 1 {
			err = fmt.Errorf("%w: %s", ErrUnknownZone, *patch.DefaultTimezone)
			return
		}
		err = vErr
		return
	}
	config.UpdatedAt = s.now()

	if err = s.store.SaveGuildConfig(ctx, toGuildConfigRecord(config)); err != nil {
		err = mapSettingsRepoError(err)
		return
	}
	return config, nil
}

func (s *ConfigService) applyPatch(config *GuildConfig, patch ConfigPatch) *ValidationError {
	vErr := &ValidationError{}

	if patch.SchedulingChannelID != nil {
		channel := strings.TrimSpace(*patch.SchedulingChannelID)
		if channel == "" {
			vErr.add("scheduling_channel_id", "channel must not be empty")
		} else {
			config.SchedulingChannelID = channel
		}
	}
	if patch.PollDay != nil {
		if day, err := recurrence.ParseWeekday(*patch.PollDay); err != nil {
			vErr.add("poll_day", "must be a weekday name such as monday")
		} else {
			config.PollDay = day
		}
	}
	if patch.PollTime != nil {
		if clock, err := recurrence.ParseClock(*patch.PollTime); err != nil {
			vErr.add("poll_time", "must be HH:MM in 24-hour time")
		} else {
			config.PollTime = clock
		}
	}
	if patch.DeadlineDay != nil {
		if day, err := recurrence.ParseWeekday(*patch.DeadlineDay); err != nil {
			vErr.add("deadline_day", "must be a weekday name such as wednesday")
		} else {
			config.DeadlineDay = day
		}
	}
	if patch.DeadlineTime != nil {
		if clock, err := recurrence.ParseClock(*patch.DeadlineTime); err != nil {
			vErr.add("deadline_time", "must be HH:MM in 24-hour time")
		} else {
			config.DeadlineTime = clock
		}
	}
	if patch.ReminderIntervals != nil {
		if intervals, msg := parseIntervals(patch.ReminderIntervals); msg != "" {
			vErr.add("reminder_intervals", msg)
		} else {
			config.ReminderIntervals = intervals
		}
	}
	if patch.ReminderMode != nil {
		mode := ReminderMode(strings.ToLower(strings.TrimSpace(*patch.ReminderMode)))
		if !mode.Valid() {
			vErr.add("reminder_mode", "must be channel or direct")
		} else {
			config.ReminderMode = mode
		}
	}
	if patch.MinParticipants != nil {
		if *patch.MinParticipants < 1 {
			vErr.add("min_participants", "must be at least 1")
		} else {
			config.MinParticipants = *patch.MinParticipants
		}
	}
	if patch.TrackedRoleID != nil {
		config.TrackedRoleID = strings.TrimSpace(*patch.TrackedRoleID)
	}
	if patch.DefaultTimezone != nil {
		zone := strings.TrimSpace(*patch.DefaultTimezone)
		if !s.zones.Valid(zone) {
			vErr.add("default_timezone", "unknown timezone")
		} else {
			config.DefaultTimezone = zone
		}
	}
	return vErr
}

// parseIntervals accepts Go duration strings that are positive and strictly
// increasing.
func parseIntervals(values []string) ([]time.Duration, string) {
	intervals := make([]time.Duration, 0, len(values))
	for _, v := range values {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Sprintf("%q is not a duration", v)
		}
		if d <= 0 {
			return nil, "intervals must be positive"
		}
		if n := len(intervals); n > 0 && d <= intervals[n-1] {
			return nil, "intervals must be strictly increasing"
		}
		intervals = append(intervals, d)
	}
	return intervals, ""
}

// SetTimezonePreference stores a participant's zone and direct reminder
// opt-in.
func (s *ConfigService) SetTimezonePreference(ctx context.Context, guildID, participantID, zone string, directReminders bool) (pref TimezonePreference, err error) {
	if s == nil {
		err = fmt.Errorf("ConfigService is nil")
		return
	}

	logger := s.loggerWith(ctx, "SetTimezonePreference", "guild_id", guildID, "participant_id", participantID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to set timezone preference", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "timezone preference set", "zone", pref.Zone)
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(guildID) == "" {
		vErr.add("guild_id", "guild is required")
	}
	if strings.TrimSpace(participantID) == "" {
		vErr.add("participant_id", "participant is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	zone = strings.TrimSpace(zone)
	if _, zErr := s.zones.Resolve(zone); zErr != nil {
		err = fmt.Errorf("%w: %w", ErrUnknownZone, zErr)
		return
	}

	pref = TimezonePreference{
		GuildID:         guildID,
		ParticipantID:   participantID,
		Zone:            zone,
		DirectReminders: directReminders,
		UpdatedAt:       s.now(),
	}
	if err = s.store.SavePreference(ctx, toPreferenceRecord(pref)); err != nil {
		err = mapSettingsRepoError(err)
		return
	}
	return pref, nil
}

// GetTimezonePreference returns a participant's preference or ErrNotFound.
func (s *ConfigService) GetTimezonePreference(ctx context.Context, guildID, participantID string) (TimezonePreference, error) {
	if s == nil {
		return TimezonePreference{}, fmt.Errorf("ConfigService is nil")
	}
	record, err := s.store.GetPreference(ctx, guildID, participantID)
	if err != nil {
		return TimezonePreference{}, mapSettingsRepoError(err)
	}
	return PreferenceFromRecord(record), nil
}

// ClearTimezonePreference removes a preference and reports whether one existed.
func (s *ConfigService) ClearTimezonePreference(ctx context.Context, guildID, participantID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("ConfigService is nil")
	}
	logger := s.loggerWith(ctx, "ClearTimezonePreference", "guild_id", guildID, "participant_id", participantID)

	deleted, err := s.store.DeletePreference(ctx, guildID, participantID)
	if err != nil {
		err = mapSettingsRepoError(err)
		logger.ErrorContext(ctx, "failed to clear timezone preference", "error", err, "error_kind", ErrorKind(err))
		return false, err
	}
	logger.InfoContext(ctx, "timezone preference cleared", "existed", deleted)
	return deleted, nil
}
