package crypto

import "errors"

var (
	ErrFloatNotAllowed   = errors.New("float values are not allowed")
	ErrNonStringMapKey   = errors.New("map keys must be strings")
	ErrUnsupportedType   = errors.New("unsupported type for canonicalization")
	ErrKeyCollision      = errors.New("normalized map key collision")
	ErrInvalidDigestLen  = errors.New("invalid digest length")
	ErrUnsupportedKey    = errors.New("unsupported public key algorithm")
	ErrAlgorithmDenied   = errors.New("public key algorithm not allowed")
	ErrSignatureMismatch = errors.New("signature does not match digest")
	ErrEmptySignature    = errors.New("empty signature")
	ErrSignatureEncoding = errors.New("unrecognized signature encoding")
)
