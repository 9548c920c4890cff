// Package audit records verification outcomes served by the gateway.
package audit

import (
	"context"
	"time"

	"github.com/davidahmann/ledgerproof/internal/ledger"
)

const DefaultLimit = 100

// Record is one verification outcome. Leaf, Root and Algorithm are empty
// unless Verified.
type Record struct {
	ID         int64
	RecordedAt string
	Source     string
	NodeID     string
	Verified   bool
	Stage      string
	Kind       string
	Detail     string
	Leaf       string
	Root       string
	Algorithm  string
}

type Store interface {
	Append(ctx context.Context, rec Record) (int64, error)
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	// ByRoot returns up to limit records for a root digest, newest first.
	ByRoot(ctx context.Context, root string, limit int) ([]Record, error)
	Close() error
}

func NewRecord(source string, nodeID string, res ledger.Result, now time.Time) Record {
	rec := Record{
		RecordedAt: now.UTC().Format(time.RFC3339Nano),
		Source:     source,
		NodeID:     nodeID,
		Verified:   res.Verified(),
		Stage:      string(res.Stage),
	}
	if res.Verified() {
		rec.Leaf = res.Leaf.Hex()
		rec.Root = res.Root.Hex()
		rec.Algorithm = res.Algorithm
	}
	if res.Failure != nil {
		rec.Kind = string(res.Failure.Kind)
		rec.Detail = res.Failure.Detail
	}
	return rec
}

// Limit clamps a caller-supplied limit to (0, DefaultLimit].
func Limit(n int) int {
	if n <= 0 || n > DefaultLimit {
		return DefaultLimit
	}
	return n
}
