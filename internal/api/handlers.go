package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/davidahmann/ledgerproof/internal/audit"
	"github.com/davidahmann/ledgerproof/internal/auth"
	"github.com/davidahmann/ledgerproof/internal/batch"
	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/internal/ledger"
	"github.com/davidahmann/ledgerproof/internal/metrics"
	"github.com/davidahmann/ledgerproof/pkg/types"
)

const defaultMaxBodyBytes = 1 << 20

type Handler struct {
	Auth    auth.Authenticator
	Options ledger.Options
	Batch   *batch.Verifier
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	// Audit records every outcome and serves GET /v1/verifications when set.
	Audit audit.Store

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
	MaxBodyBytes   int64
	// MaxBatchSize caps receipts per batch request; 0 means unlimited.
	MaxBatchSize int
	// BatchTimeout bounds a whole batch request; 0 leaves only the client's deadline.
	BatchTimeout time.Duration
}

func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/verify", h.Verify)
	mux.HandleFunc("POST /v1/verify/batch", h.VerifyBatch)
	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.Audit != nil {
		mux.HandleFunc("GET /v1/verifications", h.ListVerifications)
	}
	if h.MetricsHandler != nil {
		mux.Handle("GET /metrics", h.MetricsHandler)
	}
	return mux
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	var wire types.Receipt
	if !h.decodeBody(w, r, &wire) {
		return
	}

	start := time.Now()
	var res ledger.Result
	receipt, err := ledger.FromWire(wire)
	if err != nil {
		res = ledger.Rejected(err)
	} else {
		res = ledger.VerifyReceipt(receipt, h.Options)
	}
	h.Metrics.Observe(res, time.Since(start))

	h.logResult(wire.NodeID, res)
	h.record(r.Context(), "verify", wire.NodeID, res)
	writeJSON(w, http.StatusOK, toResponse("", res))
}

func (h *Handler) VerifyBatch(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	var req types.BatchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if h.MaxBatchSize > 0 && len(req.Receipts) > h.MaxBatchSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": fmt.Sprintf("batch exceeds %d receipts", h.MaxBatchSize)})
		return
	}

	items := make([]batch.Item, 0, len(req.Receipts))
	for i, wire := range req.Receipts {
		receipt, err := ledger.FromWire(wire)
		items = append(items, batch.Item{Name: fmt.Sprintf("%d", i), Receipt: receipt, Err: err})
	}

	verifier := h.Batch
	if verifier == nil {
		verifier = &batch.Verifier{Options: h.Options, Metrics: h.Metrics}
	}

	ctx := r.Context()
	if h.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.BatchTimeout)
		defer cancel()
	}

	outcomes, err := verifier.Run(ctx, items)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	resp := types.BatchResponse{Valid: batch.AllVerified(outcomes), Results: make([]types.VerifyResponse, 0, len(outcomes))}
	for i, o := range outcomes {
		resp.Results = append(resp.Results, toResponse(o.Name, o.Result))
		h.record(r.Context(), "batch/"+o.Name, req.Receipts[i].NodeID, o.Result)
	}
	h.logger().Info("batch verified", zap.Int("receipts", len(outcomes)), zap.Bool("valid", resp.Valid))
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	if !h.ensureAuth(w, r) {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var (
		records []audit.Record
		err     error
	)
	if raw := r.URL.Query().Get("root"); raw != "" {
		root, ok := normalizeRoot(raw)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "root must be 64 hex characters"})
			return
		}
		records, err = h.Audit.ByRoot(r.Context(), root, limit)
	} else {
		records, err = h.Audit.Recent(r.Context(), limit)
	}
	if err != nil {
		h.logger().Error("list verifications", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "audit log unavailable"})
		return
	}

	resp := types.VerificationList{Records: make([]types.VerificationRecord, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, types.VerificationRecord{
			ID:         rec.ID,
			RecordedAt: rec.RecordedAt,
			Source:     rec.Source,
			NodeID:     rec.NodeID,
			Valid:      rec.Verified,
			Stage:      rec.Stage,
			Kind:       rec.Kind,
			Detail:     rec.Detail,
			Leaf:       rec.Leaf,
			Root:       rec.Root,
			Algorithm:  rec.Algorithm,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

func (h *Handler) ensureAuth(w http.ResponseWriter, r *http.Request) bool {
	if h.Auth == nil {
		return true
	}
	if _, err := h.Auth.Authenticate(r); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h *Handler) logResult(nodeID string, res ledger.Result) {
	if res.Verified() {
		h.logger().Info("receipt verified", zap.String("node_id", nodeID), zap.String("root", res.Root.Hex()))
		return
	}
	h.logger().Warn("receipt rejected",
		zap.String("node_id", nodeID),
		zap.String("kind", string(res.Failure.Kind)),
		zap.String("stage", string(res.Stage)),
		zap.String("detail", res.Failure.Detail),
	)
}

// normalizeRoot lower-cases a hex root digest to match how records store it.
func normalizeRoot(raw string) (string, bool) {
	root := strings.ToLower(strings.TrimSpace(raw))
	if len(root) != 2*crypto.DigestSize {
		return "", false
	}
	if _, err := hex.DecodeString(root); err != nil {
		return "", false
	}
	return root, true
}

// record appends to the audit log. Failures are logged and never change the response.
func (h *Handler) record(ctx context.Context, source string, nodeID string, res ledger.Result) {
	if h.Audit == nil {
		return
	}
	if _, err := h.Audit.Append(ctx, audit.NewRecord(source, nodeID, res, time.Now())); err != nil {
		h.logger().Error("audit append failed", zap.String("source", source), zap.Error(err))
	}
}

func toResponse(name string, res ledger.Result) types.VerifyResponse {
	resp := types.VerifyResponse{
		Name:  name,
		Valid: res.Verified(),
		Stage: string(res.Stage),
	}
	if res.Verified() {
		resp.Algorithm = res.Algorithm
		resp.Leaf = res.Leaf.Hex()
		resp.Root = res.Root.Hex()
	}
	if res.Failure != nil {
		resp.Kind = string(res.Failure.Kind)
		resp.Detail = res.Failure.Detail
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
