// Package migrations versions the layout of the bbolt subscribers database.
package migrations

import (
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Roma7-7-7/livestream-notifier/internal/dal/migrations/v1"
	"github.com/Roma7-7-7/livestream-notifier/internal/dal/migrations/v2"
)

const migrationsBucket = "migrations"

// Migration is one versioned change of the database.
// Up runs in the same transaction that records the version, so a failed
// migration leaves neither data nor a record behind.
type Migration interface {
	Version() int
	Description() string
	Up(tx *bbolt.Tx) error
}

// All returns every migration of the subscribers database.
// importPath is a flat subscriber list imported once when the database is created; empty skips the import.
func All(importPath string) []Migration {
	return []Migration{
		v1.New(),
		v2.New(importPath, time.Now),
	}
}

// RunMigrations applies the migrations that are not recorded yet, lowest version first.
func RunMigrations(db *bbolt.DB, log *slog.Logger, migrations ...Migration) error {
	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if appliedAt, ok := applied[m.Version()]; ok {
			log.Debug("Skipping already-applied migration",
				"version", m.Version(),
				"applied_at", appliedAt.Format(time.RFC3339))
			continue
		}
		pending = append(pending, m)
	}
	slices.SortFunc(pending, func(a, b Migration) int {
		return a.Version() - b.Version()
	})

	if len(pending) == 0 {
		log.Debug("No pending migrations found")
		return nil
	}

	for _, m := range pending {
		mlog := log.With("version", m.Version(), "description", m.Description())
		mlog.Info("Applying migration")

		start := time.Now()
		err := db.Update(func(tx *bbolt.Tx) error {
			if err := m.Up(tx); err != nil {
				return err
			}
			return markApplied(tx, m.Version(), time.Now())
		})
		if err != nil {
			mlog.Error("Migration failed", "error", err)
			return fmt.Errorf("apply migration v%d: %w", m.Version(), err)
		}

		mlog.Info("Migration applied", "duration", time.Since(start))
	}

	return nil
}

func appliedVersions(db *bbolt.DB) (map[int]time.Time, error) {
	res := make(map[int]time.Time)

	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(migrationsBucket))
		if b == nil {
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			version, err := strconv.Atoi(strings.TrimPrefix(string(k), "v"))
			if err != nil {
				return fmt.Errorf("parse version %q: %w", k, err)
			}
			appliedAt, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return fmt.Errorf("parse applied time of v%d: %w", version, err)
			}
			res[version] = appliedAt
			return nil
		})
	})

	return res, err //nolint:wrapcheck // it's ok
}

func markApplied(tx *bbolt.Tx, version int, at time.Time) error {
	b, err := tx.CreateBucketIfNotExists([]byte(migrationsBucket))
	if err != nil {
		return fmt.Errorf("create migrations bucket: %w", err)
	}
	return b.Put([]byte("v"+strconv.Itoa(version)), []byte(at.UTC().Format(time.RFC3339))) //nolint:wrapcheck // it's ok
}
