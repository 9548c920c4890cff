package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestSize is the width of every digest handled by the verifier.
const DigestSize = sha256.Size

// DigestBytes returns the raw SHA-256 digest bytes.
func DigestBytes(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// DigestHex returns the SHA-256 digest as lowercase hex.
func DigestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestWithPrefix returns the SHA-256 digest with the "sha256:" prefix.
func DigestWithPrefix(data []byte) string {
	return "sha256:" + DigestHex(data)
}

// DigestConcat hashes the concatenation of parts in the order given.
func DigestConcat(parts ...[]byte) [DigestSize]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [DigestSize]byte
	h.Sum(out[:0])
	return out
}
