// Package batch verifies many independent receipts concurrently.
package batch

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/davidahmann/ledgerproof/internal/ledger"
	"github.com/davidahmann/ledgerproof/internal/metrics"
)

// KindCancelled marks items that were never verified because the context ended.
const KindCancelled ledger.FailureKind = "Cancelled"

type Item struct {
	Name    string
	Receipt ledger.Receipt
	// Err is set when the receipt could not be decoded; the item is reported
	// as failed without verification.
	Err error
}

type Outcome struct {
	Name   string
	Result ledger.Result
}

// Verifier runs ledger.VerifyReceipt over a batch with bounded parallelism.
type Verifier struct {
	Concurrency int
	Options     ledger.Options
	Metrics     *metrics.Metrics
}

// Run verifies items and returns outcomes in input order. If ctx ends before
// every item starts, the remaining items carry a Cancelled failure and Run
// returns the context error. A batch that finished before ctx ended is
// returned without error.
func (v *Verifier) Run(ctx context.Context, items []Item) ([]Outcome, error) {
	out := make([]Outcome, len(items))

	limit := v.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range items {
		item := items[i]
		g.Go(func() error {
			out[i] = Outcome{Name: item.Name, Result: v.verify(ctx, item)}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range out {
		if o.Result.Failure != nil && o.Result.Failure.Kind == KindCancelled {
			return out, o.Result.Failure.Err
		}
	}
	return out, nil
}

func (v *Verifier) verify(ctx context.Context, item Item) ledger.Result {
	if err := ctx.Err(); err != nil {
		return ledger.Result{
			Stage:   ledger.StageStart,
			Failure: &ledger.Failure{Kind: KindCancelled, Detail: err.Error(), Err: err},
		}
	}
	if item.Err != nil {
		res := ledger.Rejected(item.Err)
		v.Metrics.Observe(res, 0)
		return res
	}

	start := time.Now()
	res := ledger.VerifyReceipt(item.Receipt, v.Options)
	v.Metrics.Observe(res, time.Since(start))
	return res
}

// AllVerified reports whether every outcome verified.
func AllVerified(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.Result.Verified() {
			return false
		}
	}
	return true
}
