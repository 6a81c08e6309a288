/*
handlers.go - HTTP API handlers for the discipline ledger

PURPOSE:
  Exposes the ledger service via REST. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the ledger package.

ENDPOINTS:
  Read:
    GET  /api/state                  Full state + ranking + progress
    GET  /api/leave                  Leave records, totals, ineligible
    GET  /api/warnings               At-risk groups + ineligible people

  Leader (leader secret):
    POST /api/approvals              Submit a score/leave request

  Admin (admin secret):
    POST /api/approvals/{id}/approve Apply a pending request
    POST /api/approvals/{id}/reject  Discard a pending request
    POST /api/scores/adjust          Direct adjustment
    POST /api/scores/batch           Batch rule adjustment
    POST /api/groups/rename          Rename a group
    POST /api/admin/reload           Re-sync from the backing store

ERROR HANDLING:
  Errors map to status codes by kind:
  - 400: invalid dimension / hours / malformed body
  - 404: unknown group, unknown approval id
  - 409: duplicate name, version conflict (retry after reload)
  - 503: backend unavailable (in-memory state unchanged)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/elf59535/TsinghuaDashboard/ledger"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Log     *zap.Logger
}

// NewHandler creates a new handler around the ledger service.
func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Service: svc, Log: log}
}

// =============================================================================
// READ HANDLERS
// =============================================================================

// GetState returns the full ledger state plus ranking and progress.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	st := h.Service.GetState()
	target := h.Service.Policy().MarathonTarget.InexactFloat64()

	dto := StateDTO{
		Groups:       make([]GroupDTO, 0, len(st.Groups)),
		Logs:         make([]LogDTO, 0, len(st.Logs)),
		Approvals:    make([]ApprovalDTO, 0, len(st.Approvals)),
		LeaveRecords: make([]LeaveRecordDTO, 0, len(st.LeaveRecords)),
		Ranking:      st.Ranking(),
	}
	for _, g := range st.Groups {
		dto.Groups = append(dto.Groups, groupDTO(g, target))
	}
	for _, l := range st.Logs {
		dto.Logs = append(dto.Logs, logDTO(l))
	}
	for _, a := range st.Approvals {
		dto.Approvals = append(dto.Approvals, approvalDTO(a))
	}
	for _, rec := range st.LeaveRecords {
		dto.LeaveRecords = append(dto.LeaveRecords, leaveRecordDTO(rec))
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetLeave returns the leave ledger read model.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	st := h.Service.GetState()
	policy := h.Service.Policy()

	dto := LeaveSummaryDTO{
		Records:  make([]LeaveRecordDTO, 0, len(st.LeaveRecords)),
		CapHours: policy.LeaveCap().InexactFloat64(),
	}
	for _, rec := range st.LeaveRecords {
		dto.Records = append(dto.Records, leaveRecordDTO(rec))
	}

	totals := st.AggregateLeave()
	seen := make(map[ledger.LeaveKey]bool)
	for _, rec := range st.LeaveRecords {
		k := ledger.LeaveKey{Group: rec.Group, Name: rec.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		dto.Totals = append(dto.Totals, PersonLeaveDTO{
			Group: k.Group,
			Name:  k.Name,
			Hours: totals[k].InexactFloat64(),
		})
	}

	for _, p := range st.Ineligible(policy) {
		dto.Ineligible = append(dto.Ineligible, personLeaveDTO(p))
	}

	writeJSON(w, http.StatusOK, dto)
}

// GetWarnings returns the combined warning board.
func (h *Handler) GetWarnings(w http.ResponseWriter, r *http.Request) {
	dto := WarningsDTO{AtRisk: h.Service.AtRisk()}
	for _, p := range h.Service.Ineligible() {
		dto.Ineligible = append(dto.Ineligible, personLeaveDTO(p))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// MUTATION HANDLERS
// =============================================================================

// AdjustScore applies a direct admin adjustment.
func (h *Handler) AdjustScore(w http.ResponseWriter, r *http.Request) {
	var req AdjustScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	g, err := h.Service.AdjustScore(r.Context(), req.Group, req.Dimension,
		decimal.NewFromFloat(req.Delta), req.Reason)
	if err != nil {
		writeLedgerError(w, "Failed to adjust score", err)
		return
	}

	writeJSON(w, http.StatusOK, groupDTO(g, h.Service.Policy().MarathonTarget.InexactFloat64()))
}

// BatchAdjust applies a preset scoring rule to several groups at once.
func (h *Handler) BatchAdjust(w http.ResponseWriter, r *http.Request) {
	var req BatchAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rows := make([]ledger.BatchRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, ledger.BatchRow{Group: row.Group, Count: row.Count, Reason: row.Reason})
	}

	applied, err := h.Service.BatchAdjust(r.Context(), req.Rule, rows)
	if err != nil {
		writeLedgerError(w, "Failed to apply batch adjustment", err)
		return
	}

	writeJSON(w, http.StatusOK, BatchAdjustResponse{Applied: applied})
}

// SubmitApproval queues a request for admin decision.
func (h *Handler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	var req SubmitApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Service.SubmitApproval(r.Context(), ledger.ApprovalRequest{
		Kind:      ledger.RequestKind(req.Kind),
		Group:     req.Group,
		Reason:    req.Reason,
		Dimension: ledger.Dimension(req.Dimension),
		Change:    decimal.NewFromFloat(req.Change),
		Name:      req.Name,
		Hours:     decimal.NewFromFloat(req.Hours),
	})
	if err != nil {
		writeLedgerError(w, "Failed to submit request", err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitApprovalResponse{ID: id})
}

// ApproveRequest applies a pending request's effect exactly once.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// RejectRequest discards a pending request with no other effect.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, accept bool) {
	id := chi.URLParam(r, "id")
	if err := h.Service.DecideApproval(r.Context(), id, accept); err != nil {
		writeLedgerError(w, "Failed to decide request", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": accept})
}

// RenameGroup renames a group, preserving all scores and leave totals.
func (h *Handler) RenameGroup(w http.ResponseWriter, r *http.Request) {
	var req RenameGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Service.RenameGroup(r.Context(), req.Old, req.New); err != nil {
		writeLedgerError(w, "Failed to rename group", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"name": req.New})
}

// Reload re-syncs the in-memory state from the backing store. The recovery
// path after a version conflict.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Reload(r.Context()); err != nil {
		writeLedgerError(w, "Failed to reload state", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeLedgerError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownGroup), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateName), errors.Is(err, ledger.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidDimension), errors.Is(err, ledger.ErrInvalidHours):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
