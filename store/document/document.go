/*
Package document provides the file-versioned document backend.

PURPOSE:
  Persists the entire ledger state as one structured JSON document, the way
  the original deployment kept a single database.json in a versioned file
  store. The version token is a content hash of the file bytes: Save
  compares the caller's last-seen token against the file on disk and fails
  with ledger.ErrVersionConflict if another writer changed it in between.
  This is the only backend with any optimistic-concurrency protection.

DOCUMENT SCHEMA:
  { groups:       [{name, total, punctuality, focus, help, vitality, leaveHours}],
    logs:         [string],
    approvals:    [{id?, timestamp, group, kind, dimension?, change?, name?, hours?, reason, status}],
    leaveRecords: [{group, name, hours}] }

  Log lines are stored as plain strings (the display line carries its own
  clock prefix); approvals always persist status "pending" because resolved
  requests are removed, never flagged. Documents written before ids were
  introduced get fresh ids assigned on load.

WRITES:
  Save marshals to a temp file in the same directory and renames it into
  place, so a crash never leaves a torn document.

SEE ALSO:
  - ledger/store.go: The adapter contract
  - store/sqlite: The unversioned relational backend
*/
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/elf59535/TsinghuaDashboard/ledger"
)

// Store is the file-backed document store.
type Store struct {
	mu   sync.Mutex
	path string
	seed *ledger.State
}

// New creates a store reading and writing the document at path. The seed
// state is persisted on first Load when the file does not exist yet.
func New(path string, seed *ledger.State) *Store {
	return &Store{path: path, seed: seed}
}

// SupportsVersioning reports that Save detects concurrent writers.
func (s *Store) SupportsVersioning() bool { return true }

// Load reads the document, seeding the file first if it does not exist.
func (s *Store) Load(_ context.Context) (*ledger.State, ledger.VersionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		tok, err := s.writeLocked(s.seed)
		if err != nil {
			return nil, "", err
		}
		return s.seed.Clone(), tok, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: read %s: %v", ledger.ErrBackendUnavailable, s.path, err)
	}

	var doc documentState
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, "", fmt.Errorf("%w: decode %s: %v", ledger.ErrBackendUnavailable, s.path, err)
	}
	return doc.toState(), hash(raw), nil
}

// Save persists the full state, failing with a version conflict when the
// document on disk no longer matches the caller's last-seen token.
func (s *Store) Save(_ context.Context, st *ledger.State, expected ledger.VersionToken) (ledger.VersionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Nothing to conflict with.
	case err != nil:
		return "", fmt.Errorf("%w: read %s: %v", ledger.ErrBackendUnavailable, s.path, err)
	default:
		if current := hash(raw); current != expected {
			return "", &ledger.VersionConflictError{Expected: expected, Actual: current}
		}
	}

	return s.writeLocked(st)
}

func (s *Store) writeLocked(st *ledger.State) (ledger.VersionToken, error) {
	raw, err := json.MarshalIndent(fromState(st), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir %s: %v", ledger.ErrBackendUnavailable, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".database-*.json")
	if err != nil {
		return "", fmt.Errorf("%w: temp file: %v", ledger.ErrBackendUnavailable, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: write: %v", ledger.ErrBackendUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: close: %v", ledger.ErrBackendUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: rename: %v", ledger.ErrBackendUnavailable, err)
	}

	return hash(raw), nil
}

func hash(raw []byte) ledger.VersionToken {
	sum := sha256.Sum256(raw)
	return ledger.VersionToken(hex.EncodeToString(sum[:]))
}

// =============================================================================
// DOCUMENT SCHEMA
// =============================================================================

type documentState struct {
	Groups       []groupDoc    `json:"groups"`
	Logs         []string      `json:"logs"`
	Approvals    []approvalDoc `json:"approvals"`
	LeaveRecords []leaveDoc    `json:"leaveRecords"`
}

type groupDoc struct {
	Name        string  `json:"name"`
	Total       float64 `json:"total"`
	Punctuality float64 `json:"punctuality"`
	Focus       float64 `json:"focus"`
	Help        float64 `json:"help"`
	Vitality    float64 `json:"vitality"`
	LeaveHours  float64 `json:"leaveHours"`
}

type approvalDoc struct {
	ID        string  `json:"id,omitempty"`
	Timestamp string  `json:"timestamp"`
	Group     string  `json:"group"`
	Kind      string  `json:"kind"`
	Dimension string  `json:"dimension,omitempty"`
	Change    float64 `json:"change,omitempty"`
	Name      string  `json:"name,omitempty"`
	Hours     float64 `json:"hours,omitempty"`
	Reason    string  `json:"reason"`
	Status    string  `json:"status"`
}

type leaveDoc struct {
	Group string  `json:"group"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

func fromState(st *ledger.State) documentState {
	doc := documentState{
		Groups:       make([]groupDoc, 0, len(st.Groups)),
		Logs:         make([]string, 0, len(st.Logs)),
		Approvals:    make([]approvalDoc, 0, len(st.Approvals)),
		LeaveRecords: make([]leaveDoc, 0, len(st.LeaveRecords)),
	}
	for _, g := range st.Groups {
		doc.Groups = append(doc.Groups, groupDoc{
			Name:        g.Name,
			Total:       g.Total.InexactFloat64(),
			Punctuality: g.Punctuality.InexactFloat64(),
			Focus:       g.Focus.InexactFloat64(),
			Help:        g.Help.InexactFloat64(),
			Vitality:    g.Vitality.InexactFloat64(),
			LeaveHours:  g.LeaveHours.InexactFloat64(),
		})
	}
	for _, l := range st.Logs {
		doc.Logs = append(doc.Logs, l.Message)
	}
	for _, a := range st.Approvals {
		doc.Approvals = append(doc.Approvals, approvalDoc{
			ID:        a.ID,
			Timestamp: a.SubmittedAt.UTC().Format(time.RFC3339),
			Group:     a.Group,
			Kind:      string(a.Kind),
			Dimension: string(a.Dimension),
			Change:    a.Change.InexactFloat64(),
			Name:      a.Name,
			Hours:     a.Hours.InexactFloat64(),
			Reason:    a.Reason,
			Status:    "pending",
		})
	}
	for _, r := range st.LeaveRecords {
		doc.LeaveRecords = append(doc.LeaveRecords, leaveDoc{
			Group: r.Group,
			Name:  r.Name,
			Hours: r.Hours.InexactFloat64(),
		})
	}
	return doc
}

func (doc documentState) toState() *ledger.State {
	st := &ledger.State{
		Groups:       make([]ledger.Group, 0, len(doc.Groups)),
		Logs:         make([]ledger.LogEntry, 0, len(doc.Logs)),
		Approvals:    make([]ledger.ApprovalRequest, 0, len(doc.Approvals)),
		LeaveRecords: make([]ledger.LeaveRecord, 0, len(doc.LeaveRecords)),
	}
	for _, g := range doc.Groups {
		st.Groups = append(st.Groups, ledger.Group{
			Name:        g.Name,
			Total:       decimal.NewFromFloat(g.Total),
			Punctuality: decimal.NewFromFloat(g.Punctuality),
			Focus:       decimal.NewFromFloat(g.Focus),
			Help:        decimal.NewFromFloat(g.Help),
			Vitality:    decimal.NewFromFloat(g.Vitality),
			LeaveHours:  decimal.NewFromFloat(g.LeaveHours),
		})
	}
	for _, line := range doc.Logs {
		// The stored line already carries its clock prefix; the precise
		// wall-clock time was never persisted in this schema.
		st.Logs = append(st.Logs, ledger.LogEntry{Message: line})
	}
	for _, a := range doc.Approvals {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		submitted, _ := time.Parse(time.RFC3339, a.Timestamp)
		st.Approvals = append(st.Approvals, ledger.ApprovalRequest{
			ID:          id,
			Kind:        ledger.RequestKind(a.Kind),
			Group:       a.Group,
			SubmittedAt: submitted,
			Reason:      a.Reason,
			Dimension:   ledger.Dimension(a.Dimension),
			Change:      decimal.NewFromFloat(a.Change),
			Name:        a.Name,
			Hours:       decimal.NewFromFloat(a.Hours),
		})
	}
	for _, r := range doc.LeaveRecords {
		st.LeaveRecords = append(st.LeaveRecords, ledger.LeaveRecord{
			Group: r.Group,
			Name:  r.Name,
			Hours: decimal.NewFromFloat(r.Hours),
		})
	}
	return st
}
