package ledger

// VerifySignature checks sig over the raw 32-byte root with the certificate's key.
func VerifySignature(root Digest, sig []byte, cert *Certificate) error {
	if cert == nil || cert.Verifier == nil {
		return fail(KindCertificateInvalid, ErrNoVerifier, "verify signature")
	}
	if err := cert.Verifier.Verify(root[:], sig); err != nil {
		return fail(KindSignatureInvalid, err, "%s signature over root %s", cert.Verifier.Algorithm(), root.Hex())
	}
	return nil
}
