package ledger

// Options configures VerifyReceipt.
type Options struct {
	Cert CertOptions
}

// VerifyReceipt runs leaf -> root -> certificate -> signature and stops at the
// first failure. Digest lengths and proof shape are checked before any hashing.
func VerifyReceipt(r Receipt, opts Options) Result {
	if err := checkShape(r); err != nil {
		return failed(StageStart, err)
	}

	leaf, err := LeafOf(r.Leaf)
	if err != nil {
		return failed(StageStart, err)
	}

	root, err := ReconstructRoot(leaf, r.Proof)
	if err != nil {
		return failed(StageLeafBuilt, err)
	}

	cert, err := DecodeCertificate(r.Cert, opts.Cert)
	if err != nil {
		return failed(StageRootReconstructed, err)
	}

	if err := VerifySignature(root, r.Signature, cert); err != nil {
		return failed(StageCertificateDecoded, err)
	}

	return Result{
		Stage:     StageSignatureChecked,
		Leaf:      leaf,
		Root:      root,
		Algorithm: cert.Verifier.Algorithm(),
	}
}

func checkShape(r Receipt) error {
	if len(r.Leaf.WriteSetDigest) != len(Digest{}) {
		return fail(KindMalformedInput, nil, "write_set_digest must be %d bytes, got %d", len(Digest{}), len(r.Leaf.WriteSetDigest))
	}
	if len(r.Signature) == 0 {
		return fail(KindMalformedInput, nil, "missing signature")
	}
	return validateProof(r.Proof)
}
