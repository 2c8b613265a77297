package badger

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v3"

	"github.com/example/weekend-scheduler/internal/persistence"
)

// GetGuildConfig retrieves a guild configuration.
func (s *Store) GetGuildConfig(_ context.Context, guildID string) (persistence.GuildConfig, error) {
	var config persistence.GuildConfig
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, configKey(guildID), &config)
	})
	return config, err
}

// SaveGuildConfig inserts or replaces a guild configuration, keeping the
// original creation instant.
func (s *Store) SaveGuildConfig(ctx context.Context, config persistence.GuildConfig) error {
	if config.GuildID == "" {
		return persistence.ErrConstraintViolation
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		var stored persistence.GuildConfig
		err := getJSON(txn, configKey(config.GuildID), &stored)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
		case err != nil:
			return err
		default:
			config.CreatedAt = stored.CreatedAt
		}
		return setJSON(txn, configKey(config.GuildID), config)
	})
}

// ListGuildConfigs returns every guild configuration ordered by guild.
func (s *Store) ListGuildConfigs(_ context.Context) ([]persistence.GuildConfig, error) {
	var configs []persistence.GuildConfig
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, "cfg/", func(_ string, val []byte) error {
			var config persistence.GuildConfig
			if err := json.Unmarshal(val, &config); err != nil {
				return err
			}
			configs = append(configs, config)
			return nil
		})
	})
	return configs, err
}

// GetPreference retrieves one participant's preference.
func (s *Store) GetPreference(_ context.Context, guildID, participantID string) (persistence.TimezonePreference, error) {
	var pref persistence.TimezonePreference
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, preferenceKey(guildID, participantID), &pref)
	})
	return pref, err
}

// SavePreference inserts or replaces a participant preference.
func (s *Store) SavePreference(ctx context.Context, pref persistence.TimezonePreference) error {
	if pref.GuildID == "" || pref.ParticipantID == "" || pref.Zone == "" {
		return persistence.ErrConstraintViolation
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, preferenceKey(pref.GuildID, pref.ParticipantID), pref)
	})
}

// DeletePreference clears a preference and reports whether one existed.
func (s *Store) DeletePreference(ctx context.Context, guildID, participantID string) (bool, error) {
	var deleted bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := preferenceKey(guildID, participantID)
		found, err := exists(txn, key)
		if err != nil || !found {
			deleted = false
			return err
		}
		deleted = true
		return txn.Delete([]byte(key))
	})
	return deleted, err
}

// ListPreferences returns a guild's preferences ordered by participant.
func (s *Store) ListPreferences(_ context.Context, guildID string) ([]persistence.TimezonePreference, error) {
	var prefs []persistence.TimezonePreference
	err := s.view(func(txn *badger.Txn) error {
		return scanPrefix(txn, preferencePrefix(guildID), func(_ string, val []byte) error {
			var pref persistence.TimezonePreference
			if err := json.Unmarshal(val, &pref); err != nil {
				return err
			}
			prefs = append(prefs, pref)
			return nil
		})
	})
	return prefs, err
}
