/*
policy.go - Fixed program policy: seed groups, thresholds, scoring rules

PURPOSE:
  Bundles the policy constants of the program into one configurable value:
  the seed group set, the initial score split, the leave-eligibility
  threshold, the low-score warning line, and the marathon target.

THRESHOLDS:
  - Leave cap: 20% of the 42-hour program total = 8.4 hours. A person whose
    aggregated leave strictly exceeds the cap is ineligible for completion.
  - Low score: a group with total strictly below 80 is flagged at risk.
  - Marathon: progress is measured against a 500-point target.

SCORING RULES:
  The four preset quick-scoring rules (count x unit points on one axis).
  Labels end up in the activity log next to the applied change.

SEE ALSO:
  - leave.go: Uses the leave cap
  - service.go: Uses rules for batch adjustments
*/
package ledger

import "github.com/shopspring/decimal"

// ScoringRule is a preset adjustment: Count x Unit points on one axis.
type ScoringRule struct {
	Label         string
	Dimension     Dimension
	Unit          decimal.Decimal
	DefaultReason string
}

// Policy holds the fixed program constants. Values are configuration in the
// sense that deployments may override them; the engine never hard-codes them
// elsewhere.
type Policy struct {
	SeedGroups        []string
	InitialDimension  decimal.Decimal
	ProgramHours      decimal.Decimal
	LeaveRatio        decimal.Decimal
	LowScoreThreshold decimal.Decimal
	MarathonTarget    decimal.Decimal
	Rules             map[string]ScoringRule
}

// DefaultPolicy returns the program defaults: 7 groups at 100 points
// (25 per dimension), 42 program hours, 20% leave cap, 80-point warning
// line, 500-point marathon target.
func DefaultPolicy() Policy {
	return Policy{
		SeedGroups: []string{
			"Group 1", "Group 2", "Group 3", "Group 4",
			"Group 5", "Group 6", "Group 7",
		},
		InitialDimension:  decimal.NewFromInt(25),
		ProgramHours:      decimal.NewFromInt(42),
		LeaveRatio:        decimal.NewFromFloat(0.2),
		LowScoreThreshold: decimal.NewFromInt(80),
		MarathonTarget:    decimal.NewFromInt(500),
		Rules: map[string]ScoringRule{
			"late": {
				Label:         "late arrivals",
				Dimension:     DimensionPunctuality,
				Unit:          decimal.NewFromInt(-5),
				DefaultReason: "late",
			},
			"discipline": {
				Label:         "incidents",
				Dimension:     DimensionFocus,
				Unit:          decimal.NewFromInt(-10),
				DefaultReason: "classroom incident",
			},
			"help": {
				Label:         "commendations",
				Dimension:     DimensionHelp,
				Unit:          decimal.NewFromInt(5),
				DefaultReason: "tidy-up / helping others",
			},
			"vitality": {
				Label:         "participations",
				Dimension:     DimensionVitality,
				Unit:          decimal.NewFromInt(5),
				DefaultReason: "morning run / break exercise",
			},
		},
	}
}

// LeaveCap returns the hour count above which a person is ineligible.
func (p Policy) LeaveCap() decimal.Decimal {
	return p.ProgramHours.Mul(p.LeaveRatio)
}

// IsOverThreshold reports whether a person's aggregated leave makes them
// ineligible for completion. The comparison is strict: exactly the cap is
// still eligible.
func (p Policy) IsOverThreshold(totalHours decimal.Decimal) bool {
	return totalHours.GreaterThan(p.LeaveCap())
}

// SeedState builds the initial ledger state for a fresh backing store.
func SeedState(p Policy) *State {
	st := &State{Groups: make([]Group, 0, len(p.SeedGroups))}
	total := p.InitialDimension.Mul(decimal.NewFromInt(int64(len(Dimensions))))
	for _, name := range p.SeedGroups {
		st.Groups = append(st.Groups, Group{
			Name:        name,
			Total:       total,
			Punctuality: p.InitialDimension,
			Focus:       p.InitialDimension,
			Help:        p.InitialDimension,
			Vitality:    p.InitialDimension,
			LeaveHours:  decimal.Zero,
		})
	}
	return st
}
