package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies every NNN_name.up.sql in fsys whose version is above the
// highest one recorded for service. Each file runs in its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool, service string, fsys fs.FS) (int, error) {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	service    text NOT NULL,
	version    integer NOT NULL,
	applied_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (service, version)
)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx,
		`SELECT coalesce(max(version), 0) FROM schema_migrations WHERE service = $1`, service).Scan(&current); err != nil {
		return 0, fmt.Errorf("current version: %w", err)
	}

	files, err := pendingFiles(fsys, current)
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		content, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return 0, fmt.Errorf("read migration %s: %w", f.name, err)
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (service, version) VALUES ($1, $2)`, service, f.version)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("apply migration %s: %w", f.name, err)
		}
	}
	return len(files), nil
}

type migrationFile struct {
	version int
	name    string
}

// pendingFiles lists up migrations above current in version order. Files not
// matching NNN_*.up.sql are ignored.
func pendingFiles(fsys fs.FS, current int) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		out = append(out, migrationFile{version: version, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}
