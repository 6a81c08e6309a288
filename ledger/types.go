/*
Package ledger provides the core discipline-ledger engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  multi-dimensional group scores, per-person leave hours, and the approval
  workflow that gates every adjustment. All mutating paths go through the
  Service, which owns the in-memory state and coordinates persistence.

KEY CONCEPTS IN THIS FILE (types.go):
  - Dimension: One of the four scoring axes tracked per group
  - Group: A scored group with four dimensions, a derived total, and
    cumulative leave hours
  - ApprovalRequest: A pending score or leave request awaiting a decision
  - LeaveRecord: A single approved leave grant (append-only)
  - LogEntry: One line of the append-only activity log (newest first)
  - State: The full ledger state handed to Store implementations

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so dimension/total reconciliation is exact
  2. Stable identity: Approval requests carry durable IDs; nothing is ever
     addressed by queue position
  3. Terminal-by-removal: approved/rejected requests are removed from the
     queue, never flagged in place
  4. Append-only: leave records and log entries are only ever added

SEE ALSO:
  - scores.go: Score store operations on State
  - leave.go: Leave ledger operations and aggregation
  - queue.go: Approval queue operations
  - store.go: Persistence adapter contract
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIMENSIONS - The four scoring axes
// =============================================================================

// Dimension identifies one of the four scoring axes tracked per group.
type Dimension string

const (
	DimensionPunctuality Dimension = "punctuality"
	DimensionFocus       Dimension = "focus"
	DimensionHelp        Dimension = "help"
	DimensionVitality    Dimension = "vitality"
)

// Dimensions lists all recognized axes in display order.
var Dimensions = []Dimension{
	DimensionPunctuality,
	DimensionFocus,
	DimensionHelp,
	DimensionVitality,
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	for _, known := range Dimensions {
		if d == known {
			return d, nil
		}
	}
	return "", &InvalidDimensionError{Dimension: s}
}

// =============================================================================
// GROUP - A scored group
// =============================================================================

// Group holds one group's scores. Total is derived: it must equal the sum
// of the four dimensions after every mutation.
type Group struct {
	Name        string
	Total       decimal.Decimal
	Punctuality decimal.Decimal
	Focus       decimal.Decimal
	Help        decimal.Decimal
	Vitality    decimal.Decimal
	LeaveHours  decimal.Decimal
}

// dimension returns a pointer to the named axis, or nil if unrecognized.
func (g *Group) dimension(d Dimension) *decimal.Decimal {
	switch d {
	case DimensionPunctuality:
		return &g.Punctuality
	case DimensionFocus:
		return &g.Focus
	case DimensionHelp:
		return &g.Help
	case DimensionVitality:
		return &g.Vitality
	}
	return nil
}

// Score returns the value of the named axis.
func (g *Group) Score(d Dimension) (decimal.Decimal, error) {
	p := g.dimension(d)
	if p == nil {
		return decimal.Zero, &InvalidDimensionError{Dimension: string(d)}
	}
	return *p, nil
}

// SumDimensions recomputes the total from the four axes. Used by tests and
// consistency checks; mutations keep Total in sync incrementally.
func (g *Group) SumDimensions() decimal.Decimal {
	return g.Punctuality.Add(g.Focus).Add(g.Help).Add(g.Vitality)
}

// =============================================================================
// APPROVAL REQUEST
// =============================================================================

// RequestKind distinguishes the two request types in the approval queue.
type RequestKind string

const (
	KindScoreAdjustment RequestKind = "score-adjustment"
	KindLeave           RequestKind = "leave"
)

// ApprovalRequest is a pending request awaiting an admin decision.
// The terminal states (approved, rejected) are represented by removal from
// the queue, not by a stored status field.
type ApprovalRequest struct {
	ID          string      `json:"id"`
	Kind        RequestKind `json:"kind"`
	Group       string      `json:"group"`
	SubmittedAt time.Time   `json:"submitted_at"`
	Reason      string      `json:"reason"`

	// score-adjustment fields
	Dimension Dimension       `json:"dimension,omitempty"`
	Change    decimal.Decimal `json:"change"`

	// leave fields
	Name  string          `json:"name,omitempty"`
	Hours decimal.Decimal `json:"hours"`
}

// =============================================================================
// LEAVE RECORD
// =============================================================================

// LeaveRecord is one approved leave grant. Append-only; per-person totals
// are aggregated on demand, never stored.
type LeaveRecord struct {
	Group string
	Name  string
	Hours decimal.Decimal
}

// =============================================================================
// LOG ENTRY
// =============================================================================

// LogEntry is one line of the activity log. Message carries the full display
// line (clock-prefixed); At is the wall-clock time of the append. Entries are
// kept newest-first and are never mutated or truncated.
type LogEntry struct {
	At      time.Time
	Message string
}

// =============================================================================
// STATE - The full ledger state
// =============================================================================

// State is everything the persistence adapter loads and saves.
type State struct {
	Groups       []Group
	Logs         []LogEntry
	Approvals    []ApprovalRequest
	LeaveRecords []LeaveRecord
}

// Clone returns a deep copy. Mutations run against a clone and the Service
// swaps it in only after persistence succeeds.
func (s *State) Clone() *State {
	c := &State{
		Groups:       make([]Group, len(s.Groups)),
		Logs:         make([]LogEntry, len(s.Logs)),
		Approvals:    make([]ApprovalRequest, len(s.Approvals)),
		LeaveRecords: make([]LeaveRecord, len(s.LeaveRecords)),
	}
	copy(c.Groups, s.Groups)
	copy(c.Logs, s.Logs)
	copy(c.Approvals, s.Approvals)
	copy(c.LeaveRecords, s.LeaveRecords)
	return c
}
