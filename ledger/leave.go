/*
leave.go - Leave ledger operations

PURPOSE:
  Append-only per-person leave records plus on-demand aggregation. Records
  are few and never removed, so per-person totals are recomputed each time
  instead of cached.
*/
package ledger

import "github.com/shopspring/decimal"

// LeaveKey identifies a person within a group for aggregation.
type LeaveKey struct {
	Group string
	Name  string
}

// RecordLeave appends one leave grant. Hours must be strictly positive.
func (s *State) RecordLeave(group, name string, hours decimal.Decimal) error {
	if !hours.IsPositive() {
		return &InvalidHoursError{Hours: hours.String()}
	}
	s.LeaveRecords = append(s.LeaveRecords, LeaveRecord{
		Group: group,
		Name:  name,
		Hours: hours,
	})
	return nil
}

// AggregateLeave sums all leave records per (group, name). Totals only ever
// grow; leave is never decremented.
func (s *State) AggregateLeave() map[LeaveKey]decimal.Decimal {
	totals := make(map[LeaveKey]decimal.Decimal)
	for _, r := range s.LeaveRecords {
		k := LeaveKey{Group: r.Group, Name: r.Name}
		totals[k] = totals[k].Add(r.Hours)
	}
	return totals
}

// PersonLeave is one person's aggregated leave total.
type PersonLeave struct {
	Group string
	Name  string
	Hours decimal.Decimal
}

// Ineligible returns every person whose aggregated leave strictly exceeds
// the policy cap, in stable (group, name) order.
func (s *State) Ineligible(p Policy) []PersonLeave {
	totals := s.AggregateLeave()
	var out []PersonLeave
	seen := make(map[LeaveKey]bool)
	// Walk records to keep first-appearance order; the map alone would
	// yield a random order.
	for _, r := range s.LeaveRecords {
		k := LeaveKey{Group: r.Group, Name: r.Name}
		if seen[k] {
			continue
		}
		seen[k] = true
		if p.IsOverThreshold(totals[k]) {
			out = append(out, PersonLeave{Group: k.Group, Name: k.Name, Hours: totals[k]})
		}
	}
	return out
}
