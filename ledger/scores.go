/*
scores.go - Score store operations

PURPOSE:
  The in-memory table of groups and per-dimension scores. Every mutation
  keeps the total-score invariant: total == punctuality + focus + help +
  vitality.

OPERATIONS:
  AdjustScore:   Move one axis and the total by the same delta
  RenameGroup:   Rename in place, preserving scores and leave totals
  AddLeaveHours: Bump a group's cumulative leave-hours field
  AtRisk:        Groups whose total fell strictly below the warning line

These methods only mutate in-memory state. Persistence is the caller's
responsibility (the Service persists a clone before committing it).
*/
package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// group returns a pointer into s.Groups for the named group.
func (s *State) group(name string) (*Group, error) {
	for i := range s.Groups {
		if s.Groups[i].Name == name {
			return &s.Groups[i], nil
		}
	}
	return nil, &UnknownGroupError{Name: name}
}

// AdjustScore moves one axis of a group by delta and the total by the same
// delta, atomically with respect to the state copy it runs on.
func (s *State) AdjustScore(group string, dim Dimension, delta decimal.Decimal) (*Group, error) {
	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	axis := g.dimension(dim)
	if axis == nil {
		return nil, &InvalidDimensionError{Dimension: string(dim)}
	}
	*axis = axis.Add(delta)
	g.Total = g.Total.Add(delta)
	return g, nil
}

// RenameGroup renames oldName to newName in place. The target must be
// non-blank and not collide with any existing group.
func (s *State) RenameGroup(oldName, newName string) (*Group, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, &DuplicateNameError{Name: ""}
	}
	for i := range s.Groups {
		if s.Groups[i].Name == newName {
			return nil, &DuplicateNameError{Name: newName}
		}
	}
	g, err := s.group(oldName)
	if err != nil {
		return nil, err
	}
	g.Name = newName
	return g, nil
}

// AddLeaveHours adds to a group's cumulative leave-hours field. Hours must
// be non-negative; zero is a no-op accepted without error.
func (s *State) AddLeaveHours(group string, hours decimal.Decimal) (*Group, error) {
	if hours.IsNegative() {
		return nil, &InvalidHoursError{Hours: hours.String()}
	}
	g, err := s.group(group)
	if err != nil {
		return nil, err
	}
	g.LeaveHours = g.LeaveHours.Add(hours)
	return g, nil
}

// AtRisk returns the names of groups whose total is strictly below the
// threshold. A group at exactly the threshold is not at risk.
func (s *State) AtRisk(threshold decimal.Decimal) []string {
	var names []string
	for i := range s.Groups {
		if s.Groups[i].Total.LessThan(threshold) {
			names = append(names, s.Groups[i].Name)
		}
	}
	return names
}

// Ranking returns group names ordered by total, highest first. Ties keep
// the stored (seed) order.
func (s *State) Ranking() []string {
	idx := make([]int, len(s.Groups))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return s.Groups[idx[a]].Total.GreaterThan(s.Groups[idx[b]].Total)
	})
	names := make([]string, len(idx))
	for i, j := range idx {
		names[i] = s.Groups[j].Name
	}
	return names
}
