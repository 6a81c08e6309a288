/*
service.go - Ledger service: orchestration and persistence coordination

PURPOSE:
  The Service owns the in-memory ledger state and is the single
  serialization point for mutations. Every external call is a complete
  request/response cycle; a mutex around {apply, persist, commit} keeps
  interleaved callers from producing an inconsistent total or applying an
  approval twice.

COMMIT PROTOCOL:
  Mutations never touch the live state directly. Each one:
    1. clones the current state
    2. applies the mutation (and its activity-log entry) to the clone
    3. persists the clone with the last-seen version token
    4. only on success, swaps the clone in and adopts the new token
  A persistence failure therefore leaves the in-memory state exactly as it
  was; nothing needs rolling back and no update is silently lost.

CONFLICTS:
  ErrVersionConflict from a versioned backend is propagated to the caller.
  The Service performs no automatic retries; Reload re-syncs from the
  backend so the caller can retry against fresh state.

SEE ALSO:
  - store.go: The persistence contract
  - api/handlers.go: The display-layer surface over these operations
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service orchestrates the score store, leave ledger, approval queue, and
// activity log against a single backing store.
type Service struct {
	mu      sync.Mutex
	store   Store
	policy  Policy
	log     *zap.Logger
	now     func() time.Time
	state   *State
	version VersionToken
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService loads the current state (seeding an empty store) and returns a
// ready Service.
func NewService(ctx context.Context, store Store, policy Policy, log *zap.Logger, opts ...ServiceOption) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:  store,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	st, tok, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial load: %w", err)
	}
	s.state = st
	s.version = tok
	log.Info("ledger loaded",
		zap.Int("groups", len(st.Groups)),
		zap.Int("pending_approvals", len(st.Approvals)),
		zap.Bool("versioned", store.SupportsVersioning()))
	return s, nil
}

// Policy returns the fixed program policy.
func (s *Service) Policy() Policy { return s.policy }

// GetState returns a deep copy of the full ledger state.
func (s *Service) GetState() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// commit runs fn against a clone of the current state, persists the clone,
// and swaps it in only if persistence succeeded.
func (s *Service) commit(ctx context.Context, action string, fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Clone()
	if err := fn(next); err != nil {
		return err
	}

	tok, err := s.store.Save(ctx, next, s.version)
	if err != nil {
		s.log.Warn("persistence failed, state unchanged",
			zap.String("action", action), zap.Error(err))
		return err
	}

	s.state = next
	s.version = tok
	s.log.Info("state persisted", zap.String("action", action))
	return nil
}

// AdjustScore applies a direct admin adjustment and logs it.
func (s *Service) AdjustScore(ctx context.Context, group string, dimension string, delta decimal.Decimal, reason string) (Group, error) {
	dim, err := ParseDimension(dimension)
	if err != nil {
		return Group{}, err
	}

	var result Group
	err = s.commit(ctx, "adjust-score", func(st *State) error {
		g, err := st.AdjustScore(group, dim, delta)
		if err != nil {
			return err
		}
		st.AppendLog(s.now(), fmt.Sprintf("%s %s %s | reason: %s",
			group, dim, signed(delta), reason))
		result = *g
		return nil
	})
	return result, err
}

// BatchRow is one group's line in a batch rule adjustment.
type BatchRow struct {
	Group  string
	Count  int64
	Reason string
}

// BatchAdjust applies a preset scoring rule to several groups in one
// persistence sync. Rows with a zero count are skipped. Returns the number
// of groups adjusted.
func (s *Service) BatchAdjust(ctx context.Context, rule string, rows []BatchRow) (int, error) {
	r, ok := s.policy.Rules[rule]
	if !ok {
		return 0, fmt.Errorf("unknown scoring rule %q", rule)
	}

	applied := 0
	err := s.commit(ctx, "batch-adjust", func(st *State) error {
		for _, row := range rows {
			if row.Count <= 0 {
				continue
			}
			change := r.Unit.Mul(decimal.NewFromInt(row.Count))
			if _, err := st.AdjustScore(row.Group, r.Dimension, change); err != nil {
				return err
			}
			reason := row.Reason
			if reason == "" {
				reason = r.DefaultReason
			}
			st.AppendLog(s.now(), fmt.Sprintf("%s %s %s | reason: %s (%s: %d)",
				row.Group, r.Dimension, signed(change), reason, r.Label, row.Count))
			applied++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return applied, nil
}

// RenameGroup renames a group, preserving its scores and leave totals.
func (s *Service) RenameGroup(ctx context.Context, oldName, newName string) error {
	return s.commit(ctx, "rename-group", func(st *State) error {
		if _, err := st.RenameGroup(oldName, newName); err != nil {
			return err
		}
		st.AppendLog(s.now(), fmt.Sprintf("system: %s renamed to %s", oldName, newName))
		return nil
	})
}

// SubmitApproval validates a request, assigns its identity, and appends it
// to the approval queue. Always succeeds for well-formed input.
func (s *Service) SubmitApproval(ctx context.Context, req ApprovalRequest) (string, error) {
	switch req.Kind {
	case KindScoreAdjustment:
		if _, err := ParseDimension(string(req.Dimension)); err != nil {
			return "", err
		}
	case KindLeave:
		if strings.TrimSpace(req.Name) == "" {
			return "", fmt.Errorf("leave request needs a person name")
		}
		if !req.Hours.IsPositive() {
			return "", &InvalidHoursError{Hours: req.Hours.String()}
		}
	default:
		return "", fmt.Errorf("unknown request kind %q", req.Kind)
	}

	req.ID = uuid.NewString()
	req.SubmittedAt = s.now()

	err := s.commit(ctx, "submit-approval", func(st *State) error {
		if _, err := st.group(req.Group); err != nil {
			return err
		}
		st.EnqueueApproval(req)
		return nil
	})
	if err != nil {
		return "", err
	}
	return req.ID, nil
}

// DecideApproval resolves a pending request: accept applies its effect
// exactly once, reject discards it. Either way the request is removed, so a
// second decision on the same id fails with ErrNotFound.
func (s *Service) DecideApproval(ctx context.Context, id string, accept bool) error {
	action := "reject-approval"
	if accept {
		action = "approve-approval"
	}
	return s.commit(ctx, action, func(st *State) error {
		if accept {
			_, err := st.Approve(id, s.now())
			return err
		}
		_, err := st.Reject(id)
		return err
	})
}

// RecordLeaveDirect appends a leave record and bumps the group's cumulative
// hours without going through the queue. Used on approval dispatch; not a
// user-facing entry point.
func (s *Service) RecordLeaveDirect(ctx context.Context, group, name string, hours decimal.Decimal) error {
	return s.commit(ctx, "record-leave", func(st *State) error {
		if err := st.RecordLeave(group, name, hours); err != nil {
			return err
		}
		if _, err := st.AddLeaveHours(group, hours); err != nil {
			return err
		}
		st.AppendLog(s.now(), fmt.Sprintf("[leave recorded] %s - %s off %sh", group, name, hours))
		return nil
	})
}

// AtRisk returns groups currently below the low-score warning line.
func (s *Service) AtRisk() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AtRisk(s.policy.LowScoreThreshold)
}

// Ineligible returns people over the leave-eligibility threshold.
func (s *Service) Ineligible() []PersonLeave {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ineligible(s.policy)
}

// Reload discards the in-memory state and re-syncs from the backend. The
// recovery path after a version conflict.
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, tok, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.state = st
	s.version = tok
	s.log.Info("ledger reloaded", zap.Int("groups", len(st.Groups)))
	return nil
}
