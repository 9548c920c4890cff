package ledger

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func h(parts ...[]byte) Digest {
	return Digest(sha256.Sum256(bytes.Join(parts, nil)))
}

func sibling(label string) []byte {
	sum := sha256.Sum256([]byte(label))
	return sum[:]
}

func TestReconstructRootEmptyProof(t *testing.T) {
	leaf := h([]byte("leaf"))

	root, err := ReconstructRoot(leaf, nil)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if root != leaf {
		t.Fatalf("expected root == leaf for empty proof")
	}

	root, err = ReconstructRoot(leaf, []ProofStep{})
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if root != leaf {
		t.Fatalf("expected root == leaf for empty proof")
	}
}

func TestReconstructRootSides(t *testing.T) {
	leaf := h([]byte("leaf"))
	s1 := sibling("S1")
	s2 := sibling("S2")

	root, err := ReconstructRoot(leaf, []ProofStep{Left(s1), Right(s2)})
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	inner := h(s1, leaf[:])
	want := h(inner[:], s2)
	if root != want {
		t.Fatalf("root mismatch: got %s want %s", root.Hex(), want.Hex())
	}
}

func TestReconstructRootTamperSensitivity(t *testing.T) {
	leaf := h([]byte("leaf"))
	proof := []ProofStep{Left(sibling("S1")), Right(sibling("S2")), Left(sibling("S3"))}

	base, err := ReconstructRoot(leaf, proof)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}

	flippedLeaf := leaf
	flippedLeaf[0] ^= 0x01
	if got, _ := ReconstructRoot(flippedLeaf, proof); got == base {
		t.Fatalf("leaf bit flip not detected")
	}

	for i := range proof {
		tampered := cloneProof(proof)
		tampered[i].Sibling[5] ^= 0x80
		if got, _ := ReconstructRoot(leaf, tampered); got == base {
			t.Fatalf("sibling %d bit flip not detected", i)
		}

		tampered = cloneProof(proof)
		if tampered[i].Side == SiblingLeft {
			tampered[i].Side = SiblingRight
		} else {
			tampered[i].Side = SiblingLeft
		}
		if got, _ := ReconstructRoot(leaf, tampered); got == base {
			t.Fatalf("side flip at step %d not detected", i)
		}
	}

	reordered := cloneProof(proof)
	reordered[0], reordered[2] = reordered[2], reordered[0]
	if got, _ := ReconstructRoot(leaf, reordered); got == base {
		t.Fatalf("proof reorder not detected")
	}
}

func TestReconstructRootMalformed(t *testing.T) {
	leaf := h([]byte("leaf"))

	cases := map[string][]ProofStep{
		"short sibling": {Left(sibling("ok")), Right(make([]byte, 31))},
		"long sibling":  {Left(make([]byte, 33))},
		"nil sibling":   {Right(nil)},
		"zero side":     {{Sibling: sibling("x")}},
		"unknown side":  {{Sibling: sibling("x"), Side: Side(9)}},
	}
	for name, proof := range cases {
		_, err := ReconstructRoot(leaf, proof)
		if KindOf(err) != KindMalformedProof {
			t.Fatalf("%s: expected MalformedProof, got %v", name, err)
		}
	}
}

func cloneProof(proof []ProofStep) []ProofStep {
	out := make([]ProofStep, len(proof))
	for i, step := range proof {
		out[i] = ProofStep{Sibling: bytes.Clone(step.Sibling), Side: step.Side}
	}
	return out
}
