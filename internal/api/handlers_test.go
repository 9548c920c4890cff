package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidahmann/ledgerproof/internal/audit"
	"github.com/davidahmann/ledgerproof/internal/auth"
	"github.com/davidahmann/ledgerproof/internal/ledger"
	"github.com/davidahmann/ledgerproof/internal/metrics"
	"github.com/davidahmann/ledgerproof/internal/testledger"
	"github.com/davidahmann/ledgerproof/pkg/types"
)

func issueBody(t *testing.T) []byte {
	t.Helper()

	node, err := testledger.NewNode(testledger.ECDSAP384)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	body, err := node.IssueJSON(testledger.SampleLeaf(), testledger.SampleProof())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return body
}

func post(t *testing.T, router http.Handler, path string, body []byte, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func decodeVerify(t *testing.T, res *httptest.ResponseRecorder) types.VerifyResponse {
	t.Helper()

	var out types.VerifyResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v: %s", err, res.Body.String())
	}
	return out
}

func TestVerifyRequiresAuth(t *testing.T) {
	router := NewRouter(&Handler{Auth: auth.NewTokenAuthenticator("test-token")})

	res := post(t, router, "/v1/verify", issueBody(t), "")
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestVerifyValid(t *testing.T) {
	router := NewRouter(&Handler{Auth: auth.NewTokenAuthenticator("test-token")})

	res := post(t, router, "/v1/verify", issueBody(t), "test-token")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	out := decodeVerify(t, res)
	if !out.Valid || out.Algorithm != "ecdsa" || len(out.Root) != 64 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestVerifyTampered(t *testing.T) {
	router := NewRouter(&Handler{})

	body := bytes.Replace(issueBody(t), []byte(`"tx:42"`), []byte(`"tx:43"`), 1)
	out := decodeVerify(t, post(t, router, "/v1/verify", body, ""))
	if out.Valid || out.Kind != string(ledger.KindSignatureInvalid) {
		t.Fatalf("unexpected response: %+v", out)
	}
	if out.Root != "" {
		t.Fatalf("rejected response must not expose root")
	}
}

func TestVerifyMalformedProof(t *testing.T) {
	router := NewRouter(&Handler{})

	var wire types.Receipt
	if err := json.Unmarshal(issueBody(t), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wire.Proof = append(wire.Proof, types.ProofElement{})
	body, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out := decodeVerify(t, post(t, router, "/v1/verify", body, ""))
	if out.Valid || out.Kind != string(ledger.KindMalformedProof) || out.Stage != string(ledger.StageStart) {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestVerifyInvalidJSON(t *testing.T) {
	router := NewRouter(&Handler{})

	res := post(t, router, "/v1/verify", []byte("{invalid"), "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestVerifyBodyTooLarge(t *testing.T) {
	router := NewRouter(&Handler{MaxBodyBytes: 16})

	res := post(t, router, "/v1/verify", issueBody(t), "")
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestVerifyMethodNotAllowed(t *testing.T) {
	router := NewRouter(&Handler{})

	req := httptest.NewRequest(http.MethodGet, "/v1/verify", nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestVerifyBatch(t *testing.T) {
	router := NewRouter(&Handler{})

	var good types.Receipt
	if err := json.Unmarshal(issueBody(t), &good); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	bad := good
	bad.Signature = "!!!"

	body, err := json.Marshal(types.BatchRequest{Receipts: []types.Receipt{good, bad, good}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	res := post(t, router, "/v1/verify/batch", body, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var out types.BatchResponse
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Valid || len(out.Results) != 3 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if !out.Results[0].Valid || out.Results[1].Kind != string(ledger.KindMalformedInput) || !out.Results[2].Valid {
		t.Fatalf("unexpected results: %+v", out.Results)
	}
}

func TestVerifyBatchTooMany(t *testing.T) {
	router := NewRouter(&Handler{MaxBatchSize: 1})

	body, err := json.Marshal(types.BatchRequest{Receipts: make([]types.Receipt, 2)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res := post(t, router, "/v1/verify/batch", body, "")
	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestServerMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg, "ledgerproof")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	srv := httptest.NewServer(NewRouter(&Handler{
		Metrics:        m,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/v1/verify", "application/json", bytes.NewReader(issueBody(t)))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	_ = resp.Body.Close()

	var wire types.Receipt
	if err := json.Unmarshal(issueBody(t), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wire.LeafComponents.WriteSetDigest = "zz"
	badHex, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err = http.Post(srv.URL+"/v1/verify", "application/json", bytes.NewReader(badHex))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	_ = resp.Body.Close()

	batchBody, err := json.Marshal(map[string]any{"receipts": []json.RawMessage{json.RawMessage(`{"proof":[]}`)}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err = http.Post(srv.URL+"/v1/verify/batch", "application/json", bytes.NewReader(batchBody))
	if err != nil {
		t.Fatalf("verify batch: %v", err)
	}
	_ = resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(raw), `ledgerproof_receipt_verifications_total{outcome="verified"} 1`) {
		t.Fatalf("unexpected metrics output:\n%s", raw)
	}
	if !strings.Contains(string(raw), `ledgerproof_receipt_verifications_total{outcome="MalformedInput"} 2`) {
		t.Fatalf("expected wire-level rejections counted:\n%s", raw)
	}
}

func getList(t *testing.T, router http.Handler, query string) (int, types.VerificationList) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/v1/verifications"+query, nil)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	var out types.VerificationList
	if res.Code == http.StatusOK {
		if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
			t.Fatalf("unmarshal: %v: %s", err, res.Body.String())
		}
	}
	return res.Code, out
}

func TestVerificationsAuditLog(t *testing.T) {
	store := audit.NewInMemoryStore(0)
	router := NewRouter(&Handler{Audit: store})

	valid := post(t, router, "/v1/verify", issueBody(t), "")
	if valid.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", valid.Code)
	}
	root := decodeVerify(t, valid).Root

	batchBody, err := json.Marshal(map[string]any{"receipts": []json.RawMessage{issueBody(t), json.RawMessage(`{"proof":[]}`)}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if res := post(t, router, "/v1/verify/batch", batchBody, ""); res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	code, list := getList(t, router, "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(list.Records) != 3 {
		t.Fatalf("expected 3 records, got %+v", list.Records)
	}
	if list.Records[0].Source != "batch/1" || list.Records[0].Valid || list.Records[0].Kind != string(ledger.KindMalformedInput) {
		t.Fatalf("unexpected newest record: %+v", list.Records[0])
	}
	if list.Records[2].Source != "verify" || !list.Records[2].Valid {
		t.Fatalf("unexpected oldest record: %+v", list.Records[2])
	}

	code, list = getList(t, router, "?root="+root)
	if code != http.StatusOK || len(list.Records) != 2 {
		t.Fatalf("expected 2 records for root, got %d %+v", code, list.Records)
	}

	code, list = getList(t, router, "?root="+strings.ToUpper(root))
	if code != http.StatusOK || len(list.Records) != 2 {
		t.Fatalf("expected upper-case root to match, got %d %+v", code, list.Records)
	}

	if code, _ := getList(t, router, "?root=abc"); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short root, got %d", code)
	}
	if code, _ := getList(t, router, "?root="+strings.Repeat("zz", 32)); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-hex root, got %d", code)
	}

	code, list = getList(t, router, "?limit=1")
	if code != http.StatusOK || len(list.Records) != 1 {
		t.Fatalf("expected 1 record, got %d %+v", code, list.Records)
	}

	if code, _ := getList(t, router, "?limit=many"); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestVerificationsRequiresAudit(t *testing.T) {
	router := NewRouter(&Handler{})
	if code, _ := getList(t, router, ""); code != http.StatusNotFound {
		t.Fatalf("expected 404 without audit store, got %d", code)
	}
}

func TestVerificationsRequiresAuth(t *testing.T) {
	router := NewRouter(&Handler{Auth: auth.NewTokenAuthenticator("test-token"), Audit: audit.NewInMemoryStore(0)})
	if code, _ := getList(t, router, ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
