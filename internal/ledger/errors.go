package ledger

import "errors"

var (
	ErrEmptyCertificate = errors.New("empty certificate")
	ErrNoCertificatePEM = errors.New("no CERTIFICATE block in PEM input")
	ErrCertNotYetValid  = errors.New("certificate not yet valid")
	ErrCertExpired      = errors.New("certificate expired")
	ErrNoVerifier       = errors.New("certificate has no verifier")

	errBothSides = errors.New("both left and right present")
	errNoSide    = errors.New("neither left nor right present")
)
