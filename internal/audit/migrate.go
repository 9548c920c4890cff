package audit

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// Dialect describes how one SQL backend tracks the audit schema version.
type Dialect struct {
	// Dir is the directory under migrations/ holding this backend's schema files.
	Dir string
	// Table records applied schema versions.
	Table string

	createTable string
	insert      string
	appliedAt   func(time.Time) any
}

var (
	SQLite = Dialect{
		Dir:         "sqlite",
		Table:       "schema_migrations",
		createTable: `CREATE TABLE IF NOT EXISTS %s (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL)`,
		insert:      `INSERT INTO %s(version, applied_at) VALUES(?, ?) ON CONFLICT(version) DO NOTHING`,
		appliedAt:   func(t time.Time) any { return t.Format(time.RFC3339) },
	}
	Postgres = Dialect{
		Dir:         "postgres",
		Table:       "ledgerproof_schema_migrations",
		createTable: `CREATE TABLE IF NOT EXISTS %s (version TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL)`,
		insert:      `INSERT INTO %s(version, applied_at) VALUES($1, $2) ON CONFLICT(version) DO NOTHING`,
		appliedAt:   func(t time.Time) any { return t },
	}
)

// Versions lists the embedded schema versions for d in apply order.
func (d Dialect) Versions() ([]string, error) {
	entries, err := migrationsFS.ReadDir(path.Join("migrations", d.Dir))
	if err != nil {
		return nil, fmt.Errorf("audit schema %q: %w", d.Dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".sql"))
	}
	sort.Strings(out)
	return out, nil
}

// Migrate brings the verification log schema up to date. Each version is
// claimed and applied in one transaction, so a version is recorded only if
// its schema statements succeed.
func (d Dialect) Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("missing db")
	}
	versions, err := d.Versions()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf(d.createTable, d.Table)); err != nil {
		return fmt.Errorf("create %s: %w", d.Table, err)
	}

	now := time.Now().UTC()
	for _, version := range versions {
		if err := d.apply(ctx, db, version, now); err != nil {
			return fmt.Errorf("apply audit schema %s: %w", version, err)
		}
	}
	return nil
}

func (d Dialect) apply(ctx context.Context, db *sql.DB, version string, now time.Time) error {
	schema, err := migrationsFS.ReadFile(path.Join("migrations", d.Dir, version+".sql"))
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(d.insert, d.Table), version, d.appliedAt(now))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if claimed, err := res.RowsAffected(); err != nil || claimed == 0 {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, string(schema)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
