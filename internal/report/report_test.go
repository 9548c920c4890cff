package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/davidahmann/ledgerproof/internal/batch"
	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/internal/ledger"
)

func verifiedResult() ledger.Result {
	var leaf, root ledger.Digest
	leaf[0] = 0x01
	root[31] = 0xff
	return ledger.Result{Stage: ledger.StageSignatureChecked, Leaf: leaf, Root: root, Algorithm: "ecdsa"}
}

func TestEncodeVerified(t *testing.T) {
	got, err := Encode("r1", verifiedResult())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["verified"] != true || decoded["algorithm"] != "ecdsa" {
		t.Fatalf("unexpected report: %s", got)
	}
	if decoded["root"] != strings.Repeat("00", 31)+"ff" {
		t.Fatalf("unexpected root: %v", decoded["root"])
	}
	if _, ok := decoded["failure"]; ok {
		t.Fatalf("verified report must not carry failure")
	}
}

func TestEncodeDigestCoversBody(t *testing.T) {
	got, err := Encode("r1", verifiedResult())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	digest, _ := decoded["report_digest"].(string)
	delete(decoded, "report_digest")

	canonical, err := crypto.Canonicalize(decoded)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if crypto.DigestWithPrefix(canonical) != digest {
		t.Fatalf("report digest does not cover the body")
	}
}

func TestEncodeFailureDeterministic(t *testing.T) {
	res := ledger.Result{Stage: ledger.StageStart, Failure: &ledger.Failure{Kind: ledger.KindMalformedProof, Detail: "proof step 0"}}

	first, err := Encode("", res)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := Encode("", res)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical reports")
	}
	if !strings.Contains(string(first), `"kind":"MalformedProof"`) {
		t.Fatalf("unexpected report: %s", first)
	}
	if strings.Contains(string(first), `"root"`) {
		t.Fatalf("failed report must not expose digests: %s", first)
	}
}

func TestEncodeBatch(t *testing.T) {
	got, err := EncodeBatch([]batch.Outcome{
		{Name: "a", Result: verifiedResult()},
		{Name: "b", Result: ledger.Result{Stage: ledger.StageCertificateDecoded, Failure: &ledger.Failure{Kind: ledger.KindSignatureInvalid}}},
	})
	if err != nil {
		t.Fatalf("encode batch: %v", err)
	}

	var decoded struct {
		Verified bool             `json:"verified"`
		Results  []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(got, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Verified || len(decoded.Results) != 2 {
		t.Fatalf("unexpected batch report: %s", got)
	}
	if decoded.Results[1]["name"] != "b" {
		t.Fatalf("unexpected order: %s", got)
	}
}
