package sqlstore

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/davidahmann/ledgerproof/internal/audit"
)

const columns = `id, recorded_at, source, node_id, verified, stage, kind, detail, leaf, root, algorithm`

type Store struct {
	db *sql.DB
}

// OpenSQLite connects to dsn and brings the verification log schema up to date.
func OpenSQLite(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s, err := Open(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Open wraps an existing handle after applying the audit schema to it.
func Open(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := audit.SQLite.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps db as is; callers own its schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Append(ctx context.Context, rec audit.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO verifications(recorded_at, source, node_id, verified, stage, kind, detail, leaf, root, algorithm)
VALUES(?,?,?,?,?,?,?,?,?,?)`,
		rec.RecordedAt,
		rec.Source,
		rec.NodeID,
		boolToInt(rec.Verified),
		rec.Stage,
		rec.Kind,
		rec.Detail,
		rec.Leaf,
		rec.Root,
		rec.Algorithm,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM verifications ORDER BY id DESC LIMIT ?`, audit.Limit(limit))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *Store) ByRoot(ctx context.Context, root string, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM verifications WHERE root = ? ORDER BY id DESC LIMIT ?`, root, audit.Limit(limit))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	defer rows.Close()

	out := []audit.Record{}
	for rows.Next() {
		var rec audit.Record
		var verified int
		if err := rows.Scan(&rec.ID, &rec.RecordedAt, &rec.Source, &rec.NodeID, &verified, &rec.Stage, &rec.Kind, &rec.Detail, &rec.Leaf, &rec.Root, &rec.Algorithm); err != nil {
			return nil, err
		}
		rec.Verified = verified != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
