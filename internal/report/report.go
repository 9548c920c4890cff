// Package report renders verification results as canonical JSON.
package report

import (
	"github.com/davidahmann/ledgerproof/internal/batch"
	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/internal/ledger"
)

const Schema = "ledgerproof.report.v1"

// Body returns the report fields for a single result. Digests are only
// present for verified results.
func Body(name string, res ledger.Result) map[string]any {
	body := map[string]any{
		"verified": res.Verified(),
		"stage":    string(res.Stage),
	}
	if name != "" {
		body["name"] = name
	}
	if res.Verified() {
		body["leaf"] = res.Leaf
		body["root"] = res.Root
		body["algorithm"] = res.Algorithm
	}
	if res.Failure != nil {
		body["failure"] = map[string]any{
			"kind":   string(res.Failure.Kind),
			"detail": res.Failure.Detail,
		}
	}
	return body
}

// Encode renders a single result with its report digest.
func Encode(name string, res ledger.Result) ([]byte, error) {
	body := Body(name, res)
	body["schema"] = Schema
	return seal(body)
}

// EncodeBatch renders a batch of outcomes with one digest over the whole list.
func EncodeBatch(outcomes []batch.Outcome) ([]byte, error) {
	results := make([]any, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, Body(o.Name, o.Result))
	}
	return seal(map[string]any{
		"schema":   Schema,
		"verified": batch.AllVerified(outcomes),
		"results":  results,
	})
}

// seal adds report_digest, the sha256 of the canonical body without it.
func seal(body map[string]any) ([]byte, error) {
	canonical, err := crypto.Canonicalize(body)
	if err != nil {
		return nil, err
	}
	body["report_digest"] = crypto.DigestWithPrefix(canonical)
	return crypto.Canonicalize(body)
}
