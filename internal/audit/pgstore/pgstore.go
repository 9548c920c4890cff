package pgstore

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/davidahmann/ledgerproof/internal/audit"
)

const columns = `id, recorded_at, source, node_id, verified, stage, kind, detail, leaf, root, algorithm`

type Store struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and brings the verification log schema up to date.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
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
	if err := audit.Postgres.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return New(db), nil
}

// New wraps db as is; callers own its schema.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Append(ctx context.Context, rec audit.Record) (int64, error) {
	recordedAt, err := time.Parse(time.RFC3339Nano, rec.RecordedAt)
	if err != nil {
		return 0, err
	}

	var id int64
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO ledgerproof_verifications(recorded_at, source, node_id, verified, stage, kind, detail, leaf, root, algorithm)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		recordedAt,
		rec.Source,
		rec.NodeID,
		rec.Verified,
		rec.Stage,
		rec.Kind,
		rec.Detail,
		rec.Leaf,
		rec.Root,
		rec.Algorithm,
	)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM ledgerproof_verifications ORDER BY id DESC LIMIT $1`, audit.Limit(limit))
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (s *Store) ByRoot(ctx context.Context, root string, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM ledgerproof_verifications WHERE root = $1 ORDER BY id DESC LIMIT $2`, root, audit.Limit(limit))
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
		var recordedAt time.Time
		if err := rows.Scan(&rec.ID, &recordedAt, &rec.Source, &rec.NodeID, &rec.Verified, &rec.Stage, &rec.Kind, &rec.Detail, &rec.Leaf, &rec.Root, &rec.Algorithm); err != nil {
			return nil, err
		}
		rec.RecordedAt = recordedAt.UTC().Format(time.RFC3339Nano)
		out = append(out, rec)
	}
	return out, rows.Err()
}
