package ledger

import (
	"errors"
	"fmt"
)

type FailureKind string

const (
	KindMalformedInput     FailureKind = "MalformedInput"
	KindMalformedProof     FailureKind = "MalformedProof"
	KindCertificateInvalid FailureKind = "CertificateInvalid"
	KindSignatureInvalid   FailureKind = "SignatureInvalid"
)

// Failure is the typed error every verification component returns.
type Failure struct {
	Kind   FailureKind
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func fail(kind FailureKind, err error, format string, args ...any) *Failure {
	detail := fmt.Sprintf(format, args...)
	if err != nil {
		detail = detail + ": " + err.Error()
	}
	return &Failure{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the failure kind carried by err, or "" if err is not a Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// Stage is the last pipeline state a verification reached.
type Stage string

const (
	StageStart              Stage = "start"
	StageLeafBuilt          Stage = "leaf_built"
	StageRootReconstructed  Stage = "root_reconstructed"
	StageCertificateDecoded Stage = "certificate_decoded"
	StageSignatureChecked   Stage = "signature_checked"
)

// Result is the outcome of VerifyReceipt. Leaf, Root and Algorithm are only
// populated when the receipt verified.
type Result struct {
	Stage     Stage
	Leaf      Digest
	Root      Digest
	Algorithm string
	Failure   *Failure
}

func (r Result) Verified() bool {
	return r.Failure == nil && r.Stage == StageSignatureChecked
}

// Err returns nil for a verified result and the Failure otherwise.
func (r Result) Err() error {
	if r.Failure != nil {
		return r.Failure
	}
	if r.Stage != StageSignatureChecked {
		return &Failure{Kind: KindMalformedInput, Detail: "verification incomplete"}
	}
	return nil
}

func failed(stage Stage, err error) Result {
	var f *Failure
	if !errors.As(err, &f) {
		f = &Failure{Kind: KindMalformedInput, Detail: err.Error(), Err: err}
	}
	return Result{Stage: stage, Failure: f}
}

// Rejected is the Result for an error raised before verification began,
// such as a receipt that failed to decode. Non-Failure errors become
// MalformedInput.
func Rejected(err error) Result {
	return failed(StageStart, err)
}
