/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the domain
  model (decimal quantities, internal types) from the external contract
  (plain floats and strings).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the ledger service, not in DTOs. DTOs
  are pure data carriers.
*/
package api

import (
	"time"

	"github.com/elf59535/TsinghuaDashboard/ledger"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GroupDTO is one group's scores plus its marathon progress.
type GroupDTO struct {
	Name        string  `json:"name"`
	Total       float64 `json:"total"`
	Punctuality float64 `json:"punctuality"`
	Focus       float64 `json:"focus"`
	Help        float64 `json:"help"`
	Vitality    float64 `json:"vitality"`
	LeaveHours  float64 `json:"leave_hours"`
	Progress    float64 `json:"progress"` // total / marathon target, capped at 1
}

// LogDTO is one activity-log line.
type LogDTO struct {
	At      string `json:"at,omitempty"`
	Message string `json:"message"`
}

// ApprovalDTO is one pending request.
type ApprovalDTO struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	Group       string  `json:"group"`
	SubmittedAt string  `json:"submitted_at"`
	Reason      string  `json:"reason"`
	Dimension   string  `json:"dimension,omitempty"`
	Change      float64 `json:"change,omitempty"`
	Name        string  `json:"name,omitempty"`
	Hours       float64 `json:"hours,omitempty"`
}

// LeaveRecordDTO is one leave grant.
type LeaveRecordDTO struct {
	Group string  `json:"group"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// PersonLeaveDTO is one person's aggregated leave total.
type PersonLeaveDTO struct {
	Group string  `json:"group"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// StateDTO is the full ledger state plus derived display data.
type StateDTO struct {
	Groups       []GroupDTO       `json:"groups"`
	Logs         []LogDTO         `json:"logs"`
	Approvals    []ApprovalDTO    `json:"approvals"`
	LeaveRecords []LeaveRecordDTO `json:"leave_records"`
	Ranking      []string         `json:"ranking"`
}

// LeaveSummaryDTO is the read model of the leave ledger.
type LeaveSummaryDTO struct {
	Records    []LeaveRecordDTO `json:"records"`
	Totals     []PersonLeaveDTO `json:"totals"`
	Ineligible []PersonLeaveDTO `json:"ineligible"`
	CapHours   float64          `json:"cap_hours"`
}

// WarningsDTO is the combined warning board.
type WarningsDTO struct {
	AtRisk     []string         `json:"at_risk"`
	Ineligible []PersonLeaveDTO `json:"ineligible"`
}

// SubmitApprovalResponse returns the durable id of a queued request.
type SubmitApprovalResponse struct {
	ID string `json:"id"`
}

// BatchAdjustResponse reports how many groups a batch rule touched.
type BatchAdjustResponse struct {
	Applied int `json:"applied"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// AdjustScoreRequest is a direct admin adjustment.
type AdjustScoreRequest struct {
	Group     string  `json:"group"`
	Dimension string  `json:"dimension"`
	Delta     float64 `json:"delta"`
	Reason    string  `json:"reason"`
}

// BatchAdjustRequest applies a preset scoring rule to several groups.
type BatchAdjustRequest struct {
	Rule string        `json:"rule"`
	Rows []BatchRowDTO `json:"rows"`
}

// BatchRowDTO is one group's line in a batch adjustment.
type BatchRowDTO struct {
	Group  string `json:"group"`
	Count  int64  `json:"count"`
	Reason string `json:"reason,omitempty"`
}

// SubmitApprovalRequest queues a request for admin decision.
type SubmitApprovalRequest struct {
	Kind      string  `json:"kind"`
	Group     string  `json:"group"`
	Reason    string  `json:"reason"`
	Dimension string  `json:"dimension,omitempty"`
	Change    float64 `json:"change,omitempty"`
	Name      string  `json:"name,omitempty"`
	Hours     float64 `json:"hours,omitempty"`
}

// RenameGroupRequest renames a group.
type RenameGroupRequest struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func groupDTO(g ledger.Group, target float64) GroupDTO {
	progress := 0.0
	if target > 0 {
		progress = g.Total.InexactFloat64() / target
		if progress > 1 {
			progress = 1
		}
	}
	return GroupDTO{
		Name:        g.Name,
		Total:       g.Total.InexactFloat64(),
		Punctuality: g.Punctuality.InexactFloat64(),
		Focus:       g.Focus.InexactFloat64(),
		Help:        g.Help.InexactFloat64(),
		Vitality:    g.Vitality.InexactFloat64(),
		LeaveHours:  g.LeaveHours.InexactFloat64(),
		Progress:    progress,
	}
}

func approvalDTO(a ledger.ApprovalRequest) ApprovalDTO {
	return ApprovalDTO{
		ID:          a.ID,
		Kind:        string(a.Kind),
		Group:       a.Group,
		SubmittedAt: a.SubmittedAt.Format(time.RFC3339),
		Reason:      a.Reason,
		Dimension:   string(a.Dimension),
		Change:      a.Change.InexactFloat64(),
		Name:        a.Name,
		Hours:       a.Hours.InexactFloat64(),
	}
}

func logDTO(l ledger.LogEntry) LogDTO {
	dto := LogDTO{Message: l.Message}
	if !l.At.IsZero() {
		dto.At = l.At.Format(time.RFC3339)
	}
	return dto
}

func leaveRecordDTO(r ledger.LeaveRecord) LeaveRecordDTO {
	return LeaveRecordDTO{
		Group: r.Group,
		Name:  r.Name,
		Hours: r.Hours.InexactFloat64(),
	}
}

func personLeaveDTO(p ledger.PersonLeave) PersonLeaveDTO {
	return PersonLeaveDTO{
		Group: p.Group,
		Name:  p.Name,
		Hours: p.Hours.InexactFloat64(),
	}
}
