package ledger

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"time"

	"github.com/davidahmann/ledgerproof/internal/crypto"
)

// CertOptions controls certificate decoding.
type CertOptions struct {
	// CheckValidity rejects certificates whose validity window excludes Now.
	CheckValidity bool
	// Now defaults to time.Now.
	Now func() time.Time
	// NewVerifier defaults to crypto.NewVerifier.
	NewVerifier crypto.VerifierFactory
}

// Certificate is a decoded node certificate. It carries only what is needed
// to check a signature; no chain is built.
type Certificate struct {
	X509      *x509.Certificate
	Verifier  crypto.Verifier
	NotBefore time.Time
	NotAfter  time.Time
}

// DecodeCertificate parses a PEM (first CERTIFICATE block) or DER encoded
// certificate and extracts its public key as a Verifier.
func DecodeCertificate(encoded []byte, opts CertOptions) (*Certificate, error) {
	trimmed := bytes.TrimSpace(encoded)
	if len(trimmed) == 0 {
		return nil, fail(KindCertificateInvalid, ErrEmptyCertificate, "decode certificate")
	}

	der, err := certificateDER(trimmed)
	if err != nil {
		return nil, fail(KindCertificateInvalid, err, "decode certificate")
	}

	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fail(KindCertificateInvalid, err, "parse certificate")
	}

	if opts.CheckValidity {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		t := now()
		if t.Before(parsed.NotBefore) {
			return nil, fail(KindCertificateInvalid, ErrCertNotYetValid, "not_before %s", parsed.NotBefore.UTC().Format(time.RFC3339))
		}
		if t.After(parsed.NotAfter) {
			return nil, fail(KindCertificateInvalid, ErrCertExpired, "not_after %s", parsed.NotAfter.UTC().Format(time.RFC3339))
		}
	}

	factory := opts.NewVerifier
	if factory == nil {
		factory = crypto.NewVerifier
	}
	verifier, err := factory(parsed.PublicKey)
	if err != nil {
		return nil, fail(KindCertificateInvalid, err, "certificate public key")
	}

	return &Certificate{
		X509:      parsed,
		Verifier:  verifier,
		NotBefore: parsed.NotBefore,
		NotAfter:  parsed.NotAfter,
	}, nil
}

func certificateDER(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("-----BEGIN")) {
		return data, nil
	}
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			return nil, ErrNoCertificatePEM
		}
		if block.Type == "CERTIFICATE" {
			return block.Bytes, nil
		}
	}
}
