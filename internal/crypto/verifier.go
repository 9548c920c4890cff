package crypto

import (
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
)

const (
	AlgorithmECDSA   = "ecdsa"
	AlgorithmEd25519 = "ed25519"
	AlgorithmRSA     = "rsa"
)

// Algorithms lists every algorithm name NewVerifier can produce.
var Algorithms = []string{AlgorithmECDSA, AlgorithmEd25519, AlgorithmRSA}

// Verifier checks a signature over a 32-byte SHA-256 digest.
// Implementations delegate comparison to the underlying primitive.
type Verifier interface {
	Algorithm() string
	Verify(digest, sig []byte) error
}

// VerifierFactory turns a parsed public key into a Verifier.
type VerifierFactory func(publicKey any) (Verifier, error)

// NewVerifier wraps an ECDSA (P-256, P-384, P-521), Ed25519 or RSA public key.
func NewVerifier(publicKey any) (Verifier, error) {
	switch key := publicKey.(type) {
	case *ecdsa.PublicKey:
		switch key.Curve {
		case elliptic.P256(), elliptic.P384(), elliptic.P521():
			return ecdsaVerifier{key: key}, nil
		default:
			return nil, fmt.Errorf("%w: ecdsa curve %s", ErrUnsupportedKey, curveName(key.Curve))
		}
	case ed25519.PublicKey:
		if len(key) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 key length %d", ErrUnsupportedKey, len(key))
		}
		return ed25519Verifier{key: key}, nil
	case *rsa.PublicKey:
		return rsaVerifier{key: key}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, publicKey)
	}
}

// AllowOnly restricts factory to the named algorithms. An empty list allows all.
func AllowOnly(factory VerifierFactory, algorithms []string) VerifierFactory {
	if len(algorithms) == 0 {
		return factory
	}
	allowed := make(map[string]struct{}, len(algorithms))
	for _, alg := range algorithms {
		allowed[alg] = struct{}{}
	}
	return func(publicKey any) (Verifier, error) {
		v, err := factory(publicKey)
		if err != nil {
			return nil, err
		}
		if _, ok := allowed[v.Algorithm()]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrAlgorithmDenied, v.Algorithm())
		}
		return v, nil
	}
}

func checkInputs(digest, sig []byte) error {
	if len(digest) != DigestSize {
		return ErrInvalidDigestLen
	}
	if len(sig) == 0 {
		return ErrEmptySignature
	}
	return nil
}

type ecdsaVerifier struct {
	key *ecdsa.PublicKey
}

func (v ecdsaVerifier) Algorithm() string { return AlgorithmECDSA }

// Verify expects an ASN.1 DER signature over the digest used as a SHA-256 prehash.
func (v ecdsaVerifier) Verify(digest, sig []byte) error {
	if err := checkInputs(digest, sig); err != nil {
		return err
	}
	if !ecdsa.VerifyASN1(v.key, digest, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

type ed25519Verifier struct {
	key ed25519.PublicKey
}

func (v ed25519Verifier) Algorithm() string { return AlgorithmEd25519 }

func (v ed25519Verifier) Verify(digest, sig []byte) error {
	if err := checkInputs(digest, sig); err != nil {
		return err
	}
	if !ed25519.Verify(v.key, digest, sig) {
		return ErrSignatureMismatch
	}
	return nil
}

type rsaVerifier struct {
	key *rsa.PublicKey
}

func (v rsaVerifier) Algorithm() string { return AlgorithmRSA }

func (v rsaVerifier) Verify(digest, sig []byte) error {
	if err := checkInputs(digest, sig); err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(v.key, stdcrypto.SHA256, digest, sig); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	return nil
}

func curveName(c elliptic.Curve) string {
	if c == nil || c.Params() == nil {
		return "unknown"
	}
	return c.Params().Name
}
