package types

// Receipt is the JSON body a ledger node returns for a committed transaction.
type Receipt struct {
	LeafComponents *LeafComponents `json:"leaf_components"`
	Proof          []ProofElement  `json:"proof"`
	Cert           string          `json:"cert"`
	Signature      string          `json:"signature"`
	NodeID         string          `json:"node_id,omitempty"`
}

type LeafComponents struct {
	Claim          string `json:"claim"`
	CommitEvidence string `json:"commit_evidence"`
	WriteSetDigest string `json:"write_set_digest"`
}

// ProofElement carries exactly one of Left or Right, naming the side the
// sibling digest occupies.
type ProofElement struct {
	Left  *string `json:"left,omitempty"`
	Right *string `json:"right,omitempty"`
}

// VerifyResponse is returned by the gateway for each verified receipt.
type VerifyResponse struct {
	Name      string `json:"name,omitempty"`
	Valid     bool   `json:"valid"`
	Kind      string `json:"kind,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Stage     string `json:"stage"`
	Algorithm string `json:"algorithm,omitempty"`
	Leaf      string `json:"leaf,omitempty"`
	Root      string `json:"root,omitempty"`
}

type BatchRequest struct {
	Receipts []Receipt `json:"receipts"`
}

type BatchResponse struct {
	Valid   bool             `json:"valid"`
	Results []VerifyResponse `json:"results"`
}

// VerificationRecord is one entry of the gateway's verification log.
type VerificationRecord struct {
	ID         int64  `json:"id"`
	RecordedAt string `json:"recorded_at"`
	Source     string `json:"source"`
	NodeID     string `json:"node_id,omitempty"`
	Valid      bool   `json:"valid"`
	Stage      string `json:"stage"`
	Kind       string `json:"kind,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Leaf       string `json:"leaf,omitempty"`
	Root       string `json:"root,omitempty"`
	Algorithm  string `json:"algorithm,omitempty"`
}

type VerificationList struct {
	Records []VerificationRecord `json:"records"`
}
