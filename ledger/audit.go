// audit.go - Append-only activity log, newest first.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AppendLog inserts a clock-prefixed entry at the head of the log. Entries
// are never mutated or deleted; the display layer decides how many to show.
func (s *State) AppendLog(now time.Time, message string) {
	entry := LogEntry{
		At:      now,
		Message: fmt.Sprintf("%s | %s", now.Format("15:04"), message),
	}
	s.Logs = append([]LogEntry{entry}, s.Logs...)
}

// signed renders a delta with an explicit sign, e.g. "+5" or "-10".
func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.String()
	}
	return "+" + d.String()
}
