package ledger

import (
	"encoding/hex"

	"github.com/davidahmann/ledgerproof/internal/crypto"
)

// Digest is a SHA-256 output: leaf hashes, sibling hashes and roots.
type Digest [crypto.DigestSize]byte

func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// LeafComponents are the three parts of a committed transaction that hash
// into its Merkle leaf.
type LeafComponents struct {
	Claim          []byte
	CommitEvidence []byte
	WriteSetDigest []byte
}

// Side says where the sibling sits relative to the running accumulator.
// The zero value is not a valid side.
type Side uint8

const (
	SiblingLeft Side = iota + 1
	SiblingRight
)

func (s Side) String() string {
	switch s {
	case SiblingLeft:
		return "left"
	case SiblingRight:
		return "right"
	default:
		return "invalid"
	}
}

// ProofStep is one level of an inclusion proof, ordered leaf to root.
type ProofStep struct {
	Sibling []byte
	Side    Side
}

func Left(sibling []byte) ProofStep {
	return ProofStep{Sibling: sibling, Side: SiblingLeft}
}

func Right(sibling []byte) ProofStep {
	return ProofStep{Sibling: sibling, Side: SiblingRight}
}

// Receipt is a decoded ledger receipt ready for verification.
type Receipt struct {
	Leaf      LeafComponents
	Proof     []ProofStep
	Cert      []byte
	Signature []byte
	NodeID    string
}
