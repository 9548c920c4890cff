// Package testledger issues signed receipts the way a ledger node does, for
// tests. It folds caller-supplied proofs; it does not build trees.
package testledger

import (
	"bytes"
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/internal/ledger"
)

const (
	ECDSAP256 = "ecdsa-p256"
	ECDSAP384 = "ecdsa-p384"
	Ed25519   = "ed25519"
	RSA       = "rsa"
)

// Node is a fake ledger node with a self-signed certificate.
type Node struct {
	Kind    string
	CertPEM []byte
	CertDER []byte

	signer stdcrypto.Signer
	opts   stdcrypto.SignerOpts
}

type Option func(*x509.Certificate)

// WithValidity overrides the certificate validity window.
func WithValidity(notBefore, notAfter time.Time) Option {
	return func(c *x509.Certificate) {
		c.NotBefore = notBefore
		c.NotAfter = notAfter
	}
}

// NewNode creates a node with a fresh key of the given kind.
func NewNode(kind string, options ...Option) (*Node, error) {
	signer, opts, err := newSigner(kind)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject:      pkix.Name{CommonName: "ledger node " + kind},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	for _, opt := range options {
		opt(tmpl)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, signer.Public(), signer)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	return &Node{
		Kind:    kind,
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		CertDER: der,
		signer:  signer,
		opts:    opts,
	}, nil
}

func newSigner(kind string) (stdcrypto.Signer, stdcrypto.SignerOpts, error) {
	switch kind {
	case ECDSAP256:
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		return key, stdcrypto.SHA256, err
	case ECDSAP384:
		key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		return key, stdcrypto.SHA256, err
	case Ed25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		return key, stdcrypto.Hash(0), err
	case RSA:
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		return key, stdcrypto.SHA256, err
	default:
		return nil, nil, fmt.Errorf("unknown node key kind: %s", kind)
	}
}

// SignRoot signs the raw 32-byte root as a SHA-256 prehash.
func (n *Node) SignRoot(root ledger.Digest) ([]byte, error) {
	return n.signer.Sign(rand.Reader, root[:], n.opts)
}

// Issue folds proof over the leaf and returns a signed receipt.
func (n *Node) Issue(leaf ledger.LeafComponents, proof []ledger.ProofStep) (ledger.Receipt, error) {
	digest, err := ledger.LeafOf(leaf)
	if err != nil {
		return ledger.Receipt{}, err
	}
	root, err := ledger.ReconstructRoot(digest, proof)
	if err != nil {
		return ledger.Receipt{}, err
	}
	sig, err := n.SignRoot(root)
	if err != nil {
		return ledger.Receipt{}, err
	}
	return ledger.Receipt{
		Leaf:      leaf,
		Proof:     proof,
		Cert:      bytes.Clone(n.CertPEM),
		Signature: sig,
		NodeID:    crypto.DigestHex(n.CertDER),
	}, nil
}

// IssueJSON is Issue encoded as a receipt response body.
func (n *Node) IssueJSON(leaf ledger.LeafComponents, proof []ledger.ProofStep) ([]byte, error) {
	r, err := n.Issue(leaf, proof)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ledger.ToWire(r))
}

// Sibling returns a deterministic 32-byte digest derived from label.
func Sibling(label string) []byte {
	return crypto.DigestBytes([]byte(label))
}

// SampleLeaf is the "tx:42" transaction with an all-zero write set digest.
func SampleLeaf() ledger.LeafComponents {
	return ledger.LeafComponents{
		Claim:          []byte("tx:42"),
		CommitEvidence: []byte("evidence-abc"),
		WriteSetDigest: make([]byte, crypto.DigestSize),
	}
}

// SampleProof is [{left: S1}, {right: S2}].
func SampleProof() []ledger.ProofStep {
	return []ledger.ProofStep{
		ledger.Left(Sibling("S1")),
		ledger.Right(Sibling("S2")),
	}
}
