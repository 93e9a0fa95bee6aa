// Package audit records every claim decision handed to a caller so that
// adjudications can be reviewed later.
package audit

import (
	"time"

	"github.com/ziadkadry99/claimwise/internal/decision"
)

// Entry is a single audit trail record.
type Entry struct {
	ID             string                  `json:"id"`
	Timestamp      time.Time               `json:"timestamp"`
	UserID         string                  `json:"user_id,omitempty"`
	Query          string                  `json:"query"`
	Outcome        decision.Outcome        `json:"decision"`
	Amount         *float64                `json:"amount"`
	CoverageStatus decision.CoverageStatus `json:"coverage_status"`
	Justification  string                  `json:"justification"`
	RuleOverrides  []string                `json:"rule_overrides"`
	Fallback       bool                    `json:"fallback"`
	ClauseCount    int                     `json:"clauses_count"`
}

// FromDecision builds the audit entry for d.
func FromDecision(userID string, d decision.Decision) Entry {
	return Entry{
		UserID:         userID,
		Query:          d.Query,
		Outcome:        d.Outcome,
		Amount:         d.Amount,
		CoverageStatus: d.CoverageStatus,
		Justification:  d.Justification,
		RuleOverrides:  d.RuleOverrides,
		Fallback:       d.Fallback,
		ClauseCount:    d.SourceClauseCount,
	}
}
