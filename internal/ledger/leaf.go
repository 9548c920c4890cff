package ledger

import "github.com/davidahmann/ledgerproof/internal/crypto"

// BuildLeaf returns SHA256(write_set_digest || SHA256(commit_evidence) || SHA256(claim)).
// The concatenation order matches the ledger's own leaf construction.
func BuildLeaf(claim, commitEvidence, writeSetDigest []byte) (Digest, error) {
	if len(writeSetDigest) != crypto.DigestSize {
		return Digest{}, fail(KindMalformedInput, nil, "write_set_digest must be %d bytes, got %d", crypto.DigestSize, len(writeSetDigest))
	}

	claimDigest := crypto.DigestConcat(claim)
	evidenceDigest := crypto.DigestConcat(commitEvidence)
	return Digest(crypto.DigestConcat(writeSetDigest, evidenceDigest[:], claimDigest[:])), nil
}

// LeafOf is BuildLeaf over a LeafComponents value.
func LeafOf(c LeafComponents) (Digest, error) {
	return BuildLeaf(c.Claim, c.CommitEvidence, c.WriteSetDigest)
}
