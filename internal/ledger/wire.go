package ledger

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/pkg/types"
)

// DecodeJSON parses a receipt body as served by a ledger node.
func DecodeJSON(data []byte) (Receipt, error) {
	var wire types.Receipt
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&wire); err != nil {
		return Receipt{}, fail(KindMalformedInput, err, "decode receipt json")
	}
	return FromWire(wire)
}

// FromWire converts the JSON receipt shape into a Receipt. Claim and commit
// evidence are kept as their UTF-8 bytes.
func FromWire(w types.Receipt) (Receipt, error) {
	if w.LeafComponents == nil {
		return Receipt{}, fail(KindMalformedInput, nil, "missing leaf_components")
	}
	if strings.TrimSpace(w.Cert) == "" {
		return Receipt{}, fail(KindMalformedInput, nil, "missing cert")
	}
	if strings.TrimSpace(w.Signature) == "" {
		return Receipt{}, fail(KindMalformedInput, nil, "missing signature")
	}

	writeSet, err := hex.DecodeString(w.LeafComponents.WriteSetDigest)
	if err != nil {
		return Receipt{}, fail(KindMalformedInput, err, "write_set_digest")
	}

	sig, err := crypto.DecodeSignature(w.Signature)
	if err != nil {
		return Receipt{}, fail(KindMalformedInput, err, "signature")
	}

	proof := make([]ProofStep, 0, len(w.Proof))
	for i, el := range w.Proof {
		step, err := stepFromWire(el)
		if err != nil {
			return Receipt{}, fail(KindMalformedProof, err, "proof element %d", i)
		}
		proof = append(proof, step)
	}

	return Receipt{
		Leaf: LeafComponents{
			Claim:          []byte(w.LeafComponents.Claim),
			CommitEvidence: []byte(w.LeafComponents.CommitEvidence),
			WriteSetDigest: writeSet,
		},
		Proof:     proof,
		Cert:      []byte(w.Cert),
		Signature: sig,
		NodeID:    w.NodeID,
	}, nil
}

func stepFromWire(el types.ProofElement) (ProofStep, error) {
	switch {
	case el.Left != nil && el.Right != nil:
		return ProofStep{}, errBothSides
	case el.Left != nil:
		b, err := hex.DecodeString(*el.Left)
		if err != nil {
			return ProofStep{}, err
		}
		return Left(b), nil
	case el.Right != nil:
		b, err := hex.DecodeString(*el.Right)
		if err != nil {
			return ProofStep{}, err
		}
		return Right(b), nil
	default:
		return ProofStep{}, errNoSide
	}
}

// ToWire is the inverse of FromWire. The signature is encoded as standard base64.
func ToWire(r Receipt) types.Receipt {
	proof := make([]types.ProofElement, 0, len(r.Proof))
	for _, step := range r.Proof {
		h := hex.EncodeToString(step.Sibling)
		switch step.Side {
		case SiblingLeft:
			proof = append(proof, types.ProofElement{Left: &h})
		case SiblingRight:
			proof = append(proof, types.ProofElement{Right: &h})
		default:
			proof = append(proof, types.ProofElement{})
		}
	}
	return types.Receipt{
		LeafComponents: &types.LeafComponents{
			Claim:          string(r.Leaf.Claim),
			CommitEvidence: string(r.Leaf.CommitEvidence),
			WriteSetDigest: hex.EncodeToString(r.Leaf.WriteSetDigest),
		},
		Proof:     proof,
		Cert:      string(r.Cert),
		Signature: base64.StdEncoding.EncodeToString(r.Signature),
		NodeID:    r.NodeID,
	}
}
