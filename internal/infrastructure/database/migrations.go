package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// schemaTable records applied migration versions.
const schemaTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
)`

// migration is one YYYYMMDD_HHMMSS_name.up.sql file. Down files are kept
// beside it for manual rollback and are not read here.
type migration struct {
	version string
	name    string
	sql     string
}

// Migrate applies the migrations in src not yet recorded, oldest first, and
// returns the versions it applied. A nil src applies nothing.
//
// Each migration commits on its own. When one fails, the earlier ones stay
// applied and a later Migrate resumes from the failed file.
func (db *DB) Migrate(ctx context.Context, src fs.FS) ([]string, error) {
	if _, err := db.ExecContext(ctx, schemaTable); err != nil {
		return nil, fmt.Errorf("creating migrations table: %w", err)
	}

	done, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}
	all, err := readMigrations(src)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, m := range all {
		if done[m.version] {
			continue
		}
		if err := db.inTx(ctx, m.apply); err != nil {
			return applied, fmt.Errorf("applying migration %s (%s): %w", m.version, m.name, err)
		}
		applied = append(applied, m.version)
	}
	return applied, nil
}

func (m migration) apply(tx *sql.Tx) error {
	if _, err := tx.Exec(m.sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	_, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		done[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return done, nil
}

// readMigrations loads the up files at the root of src sorted by version.
// Files that do not match the naming scheme are skipped.
func readMigrations(src fs.FS) ([]migration, error) {
	if src == nil {
		return nil, nil
	}
	names, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var out []migration
	for _, file := range names {
		version, name, ok := splitMigrationName(file)
		if !ok {
			continue
		}
		body, err := fs.ReadFile(src, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		out = append(out, migration{version: version, name: name, sql: string(body)})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// splitMigrationName parses "20261014_090000_client_storage.up.sql" into
// version "20261014_090000" and name "client_storage". The name may be empty.
func splitMigrationName(file string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(path.Base(file), ".up.sql")
	if !found {
		return "", "", false
	}
	date, rest, found := strings.Cut(base, "_")
	if !found || date == "" {
		return "", "", false
	}
	clock, name, _ := strings.Cut(rest, "_")
	if clock == "" {
		return "", "", false
	}
	return date + "_" + clock, name, true
}
