// cmd/migrate applies migrations/*.up.sql against the configured database.
// It keeps the golang-migrate schema_migrations layout (bigint version plus
// dirty flag) so either tool can take over.
//
// Usage:
//
//	go run ./cmd/migrate
//	DATABASE_URL=postgres://... go run ./cmd/migrate
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/customdomains/internal/config"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

type migration struct {
	version int64
	file    string
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, _, err := config.Load(config.New())
	if err != nil {
		return err
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version bigint NOT NULL,
			dirty   boolean NOT NULL,
			PRIMARY KEY (version)
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var dirty []int64
	rows, err := db.Query(ctx, `SELECT version FROM schema_migrations WHERE dirty ORDER BY version`)
	if err != nil {
		return fmt.Errorf("check dirty: %w", err)
	}
	dirty, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("check dirty: %w", err)
	}
	if len(dirty) > 0 {
		logger.Warn("retrying migrations left dirty by an earlier run", zap.Int64s("versions", dirty))
	}

	migrations, err := upMigrations(migrationsDir)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		var done bool
		if err := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1 AND dirty = false)`,
			m.version,
		).Scan(&done); err != nil {
			return fmt.Errorf("check %s: %w", m.file, err)
		}
		if done {
			logger.Debug("skip migration", zap.String("file", m.file))
			continue
		}

		if err := apply(ctx, db, m); err != nil {
			return err
		}
		logger.Info("applied migration", zap.String("file", m.file), zap.Int64("version", m.version))
		applied++
	}

	logger.Info("migrations complete", zap.Int("applied", applied), zap.Int("total", len(migrations)))
	return nil
}

// apply marks the version dirty, then runs the file and clears the flag in
// one transaction. A crash mid-file leaves the dirty row behind.
func apply(ctx context.Context, db *pgxpool.Pool, m migration) error {
	sql, err := os.ReadFile(filepath.Join(migrationsDir, m.file))
	if err != nil {
		return fmt.Errorf("read %s: %w", m.file, err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO schema_migrations (version, dirty) VALUES ($1, true)
		 ON CONFLICT (version) DO UPDATE SET dirty = true`, m.version,
	); err != nil {
		return fmt.Errorf("mark dirty %s: %w", m.file, err)
	}

	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", m.file, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE schema_migrations SET dirty = false WHERE version = $1`, m.version,
		); err != nil {
			return fmt.Errorf("mark clean %s: %w", m.file, err)
		}
		return nil
	})
}

// upMigrations lists the *.up.sql files in dir ordered by version.
func upMigrations(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	seen := make(map[int64]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		ver, err := versionFromFile(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parse version from %s: %w", e.Name(), err)
		}
		if prev, dup := seen[ver]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", ver, prev, e.Name())
		}
		seen[ver] = e.Name()
		out = append(out, migration{version: ver, file: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// versionFromFile extracts the leading integer from a migration filename.
// "001_custom_domains.up.sql" → 1
func versionFromFile(filename string) (int64, error) {
	prefix, _, ok := strings.Cut(filename, "_")
	if !ok {
		return 0, fmt.Errorf("unexpected filename format")
	}
	return strconv.ParseInt(prefix, 10, 64)
}
