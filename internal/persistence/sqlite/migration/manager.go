package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Manager orchestrates the migration process
type Manager struct {
	scanner  Scanner
	executor Executor
	logger   *slog.Logger
	now      func() time.Time
}

// NewManager creates a manager. A nil logger uses slog.Default.
func NewManager(scanner Scanner, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		scanner:  scanner,
		executor: executor,
		logger:   logger.With("component", "migration"),
		now:      time.Now,
	}
}

// Run applies every pending migration in version order and returns the
// number applied.
func (m *Manager) Run(ctx context.Context) (int, error) {
	status, err := m.Status(ctx)
	if err != nil {
		return 0, err
	}

	m.logger.InfoContext(ctx, "checking current database schema version",
		"current_version", status.CurrentVersion,
		"applied_count", len(status.Applied),
		"pending_count", len(status.Pending),
	)

	for _, migration := range status.Pending {
		elapsed, err := m.executor.ApplyMigration(ctx, migration, m.now())
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "error", err)
			return 0, fmt.Errorf("apply migration %s: %w", migration.Version, err)
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}

	if len(status.Pending) > 0 {
		m.logger.InfoContext(ctx, "database migrations completed successfully", "applied", len(status.Pending))
	}
	return len(status.Pending), nil
}

// Status reports applied and pending migrations after validating the
// sequence and checksums.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return nil, fmt.Errorf("scan migrations: %w", err)
	}
	if err := validateSequence(available); err != nil {
		return nil, err
	}

	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("get applied versions: %w", err)
	}

	byVersion := make(map[int]Migration, len(available))
	for _, mig := range available {
		v, _ := strconv.Atoi(mig.Version)
		byVersion[v] = mig
	}

	appliedSet := make(map[int]struct{}, len(applied))
	status := &Status{Applied: applied}
	for _, a := range applied {
		v, err := strconv.Atoi(a.Version)
		if err != nil {
			return nil, NewDatabaseError(a.Version, "validate applied version",
				fmt.Errorf("%w: applied version '%s' is not numeric", ErrInvalidVersion, a.Version))
		}
		mig, ok := byVersion[v]
		if !ok {
			return nil, NewMigrationError(a.Version, "", "validate applied",
				fmt.Errorf("%w: applied migration has no matching file", ErrVersionConflict))
		}
		if a.Checksum != "" && a.Checksum != mig.Checksum {
			return nil, NewMigrationError(a.Version, mig.FilePath, "verify checksum", ErrChecksumMismatch)
		}
		appliedSet[v] = struct{}{}
		status.CurrentVersion = a.Version
	}

	for _, mig := range available {
		v, _ := strconv.Atoi(mig.Version)
		if _, ok := appliedSet[v]; !ok {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// validateSequence ensures there are no gaps in migration version numbers.
// Migrations arrive sorted from the scanner.
func validateSequence(migrations []Migration) error {
	for i := 1; i < len(migrations); i++ {
		prev, _ := strconv.Atoi(migrations[i-1].Version)
		cur, _ := strconv.Atoi(migrations[i].Version)
		if cur != prev+1 {
			return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, prev+1)
		}
	}
	return nil
}
