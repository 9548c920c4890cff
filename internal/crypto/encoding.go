package crypto

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// DecodeSignature decodes a signature string as carried by a receipt.
// Supported forms:
// - standard base64 (what ledger nodes emit)
// - "base64:" or "hex:" prefixed values
// - unpadded URL-safe base64
func DecodeSignature(s string) ([]byte, error) {
	trim := strings.TrimSpace(s)
	if trim == "" {
		return nil, ErrEmptySignature
	}
	if strings.HasPrefix(trim, "base64:") {
		return decodeOrWrap(base64.StdEncoding.DecodeString(strings.TrimPrefix(trim, "base64:")))
	}
	if strings.HasPrefix(trim, "hex:") {
		return decodeOrWrap(hex.DecodeString(strings.TrimPrefix(trim, "hex:")))
	}

	if out, err := base64.StdEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	if out, err := base64.RawURLEncoding.DecodeString(trim); err == nil {
		return out, nil
	}
	return nil, ErrSignatureEncoding
}

func decodeOrWrap(out []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, ErrSignatureEncoding
	}
	if len(out) == 0 {
		return nil, ErrEmptySignature
	}
	return out, nil
}
