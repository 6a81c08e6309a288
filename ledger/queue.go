/*
queue.go - Approval queue operations

PURPOSE:
  A FIFO list of pending requests ordered by submission. Requests are
  resolved by durable identity, never by queue position: resolving one
  request shifts the indices of the rest, so positional removal during
  iteration would skip or double-process neighbors.

RESOLUTION:
  Approve removes the request and dispatches its effect exactly once:
    score-adjustment -> AdjustScore
    leave            -> RecordLeave + AddLeaveHours
  and appends one activity-log entry describing the applied effect.
  Reject removes the request with no other state effect.
  Either way the request is gone; there is no stored terminal status.
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueueApproval appends a request to the queue, assigning a durable id
// if the request does not carry one yet.
func (s *State) EnqueueApproval(req ApprovalRequest) string {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	s.Approvals = append(s.Approvals, req)
	return req.ID
}

// removeApproval removes the request with the given id and returns it.
func (s *State) removeApproval(id string) (ApprovalRequest, error) {
	for i := range s.Approvals {
		if s.Approvals[i].ID == id {
			req := s.Approvals[i]
			s.Approvals = append(s.Approvals[:i], s.Approvals[i+1:]...)
			return req, nil
		}
	}
	return ApprovalRequest{}, ErrNotFound
}

// Approve removes the request and applies its effect. The request is
// consumed first, so a second Approve with the same id fails with
// ErrNotFound; on a state copy, a failed dispatch discards the whole copy,
// so no request is ever left half-applied.
func (s *State) Approve(id string, now time.Time) (ApprovalRequest, error) {
	req, err := s.removeApproval(id)
	if err != nil {
		return ApprovalRequest{}, err
	}

	switch req.Kind {
	case KindScoreAdjustment:
		if _, err := s.AdjustScore(req.Group, req.Dimension, req.Change); err != nil {
			return req, err
		}
		s.AppendLog(now, fmt.Sprintf("[approved] %s %s %s | reason: %s",
			req.Group, req.Dimension, signed(req.Change), req.Reason))
	case KindLeave:
		if err := s.RecordLeave(req.Group, req.Name, req.Hours); err != nil {
			return req, err
		}
		if _, err := s.AddLeaveHours(req.Group, req.Hours); err != nil {
			return req, err
		}
		s.AppendLog(now, fmt.Sprintf("[leave approved] %s - %s off %sh",
			req.Group, req.Name, req.Hours))
	default:
		return req, fmt.Errorf("unknown request kind %q", req.Kind)
	}

	return req, nil
}

// Reject removes the request with no other state effect.
func (s *State) Reject(id string) (ApprovalRequest, error) {
	return s.removeApproval(id)
}
