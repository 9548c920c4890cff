package ledger

import "github.com/davidahmann/ledgerproof/internal/crypto"

// ReconstructRoot folds proof into leaf, leaf to root. A SiblingLeft step
// hashes sibling||acc and a SiblingRight step hashes acc||sibling. An empty
// proof returns leaf unchanged.
func ReconstructRoot(leaf Digest, proof []ProofStep) (Digest, error) {
	if err := validateProof(proof); err != nil {
		return Digest{}, err
	}

	acc := leaf
	for _, step := range proof {
		switch step.Side {
		case SiblingLeft:
			acc = Digest(crypto.DigestConcat(step.Sibling, acc[:]))
		case SiblingRight:
			acc = Digest(crypto.DigestConcat(acc[:], step.Sibling))
		}
	}
	return acc, nil
}

func validateProof(proof []ProofStep) error {
	for i, step := range proof {
		if step.Side != SiblingLeft && step.Side != SiblingRight {
			return fail(KindMalformedProof, nil, "proof step %d: unknown sibling side %d", i, step.Side)
		}
		if len(step.Sibling) != crypto.DigestSize {
			return fail(KindMalformedProof, nil, "proof step %d: sibling must be %d bytes, got %d", i, crypto.DigestSize, len(step.Sibling))
		}
	}
	return nil
}
