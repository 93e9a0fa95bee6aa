package decision

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ziadkadry99/claimwise/internal/config"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// Rule ids recorded in Decision.RuleOverrides.
const (
	RuleWaitingPeriod       = "waiting_period"
	RuleBaselinePayout      = "baseline_payout"
	RuleAmountUndetermined  = "amount_undetermined"
	RuleRejectedAmount      = "rejected_amount"
	RuleCoverageConsistency = "coverage_consistency"
	RuleClauseCitation      = "clause_citation"
	RuleNoClauses           = "no_clauses"
)

const (
	// citationWords is the length of the word run that counts as quoting a clause.
	citationWords = 5
	excerptRunes  = 160
)

// Rules holds the hard coverage rules. Apply is pure apart from metrics.
type Rules struct {
	WaitingPeriodMonths int
	JointProcedureTerms []string
	OrthopedicTerms     []string
	EmergencyTerms      []string
	BaselinePayout      float64
	ProcedurePayouts    map[string]float64
	Currency            string
}

// RulesFromConfig builds Rules from the rules section of the config.
func RulesFromConfig(c config.RulesConfig) Rules {
	return Rules{
		WaitingPeriodMonths: c.WaitingPeriodMonths,
		JointProcedureTerms: c.JointProcedureTerms,
		OrthopedicTerms:     c.OrthopedicTerms,
		EmergencyTerms:      c.EmergencyTerms,
		BaselinePayout:      c.BaselinePayout,
		ProcedurePayouts:    c.ProcedurePayouts,
		Currency:            c.Currency,
	}
}

// DefaultRules returns the rules of the default configuration.
func DefaultRules() Rules {
	return RulesFromConfig(config.DefaultConfig().Rules)
}

// Apply corrects proposal so that it satisfies every hard rule and fills
// in the bookkeeping fields. The proposal itself is not modified.
func (r Rules) Apply(sq query.StructuredQuery, clauses []retrieval.Clause, proposal Decision) Decision {
	d := proposal
	d.Amount = copyAmount(proposal.Amount)
	d.RiskFactors = append([]string{}, proposal.RiskFactors...)
	d.RuleOverrides = append([]string(nil), proposal.RuleOverrides...)
	d.PatientDetails = DetailsOf(sq)
	d.Query = sq.OriginalQuery
	d.SourceClauseCount = len(clauses)

	fire := func(rule string) {
		d.RuleOverrides = append(d.RuleOverrides, rule)
		metrics.IncRuleOverride(rule)
	}

	waiting := false
	if r.inWaitingPeriod(sq) && !r.isEmergencyOrthopedic(sq) {
		if d.Outcome != Rejected || d.CoverageStatus != CoverageNone || d.Amount != nil {
			d = r.rejectForWaitingPeriod(sq, d)
			fire(RuleWaitingPeriod)
			waiting = true
		}
	}

	if d.Outcome == Approved && d.CoverageStatus == CoverageNone {
		d.Outcome = Rejected
		fire(RuleCoverageConsistency)
	}

	if len(clauses) == 0 {
		changed := false
		if !strings.Contains(d.Justification, NoClausesNotice) {
			d.Justification = strings.TrimSpace(NoClausesNotice + " " + d.Justification)
			changed = true
		}
		if d.Outcome == Approved && !r.decidableWithoutClauses(sq) {
			d.Outcome = Rejected
			d.CoverageStatus = CoverageNone
			changed = true
		}
		if changed {
			fire(RuleNoClauses)
		}
	}

	if d.Outcome == Approved && d.Amount == nil && r.pastWaitingPeriod(sq) {
		if amount, ok := r.payoutFor(sq); ok {
			d.Amount = &amount
			fire(RuleBaselinePayout)
		}
	}

	if d.Outcome == Approved && d.Amount == nil && !contains(d.RiskFactors, RiskAmountUndetermined) {
		d.RiskFactors = append(d.RiskFactors, RiskAmountUndetermined)
		fire(RuleAmountUndetermined)
	}

	if d.Outcome == Rejected && d.Amount != nil {
		d.Amount = nil
		fire(RuleRejectedAmount)
	}

	if len(clauses) > 0 && !citesAny(d.Justification, clauses) {
		c := clauses[0]
		if waiting {
			c = r.waitingPeriodClause(clauses)
		}
		d.Justification = strings.TrimSpace(fmt.Sprintf("%s Relevant clause: %q", d.Justification, excerpt(c.Content)))
		fire(RuleClauseCitation)
	}

	return d
}

func (r Rules) rejectForWaitingPeriod(sq query.StructuredQuery, d Decision) Decision {
	d.Outcome = Rejected
	d.CoverageStatus = CoverageNone
	d.Amount = nil
	d.Justification = fmt.Sprintf(
		"Policies in force for less than %d months do not cover %s; this policy has been active for %d months and the treatment is not an emergency.",
		r.WaitingPeriodMonths, procedureLabel(sq), *sq.PolicyDurationMonths)
	if !contains(d.RiskFactors, "waiting period not served") {
		d.RiskFactors = append(d.RiskFactors, "waiting period not served")
	}
	return d
}

// isJointProcedure matches the extracted procedure, or the original query
// text when no procedure was extracted.
func (r Rules) isJointProcedure(sq query.StructuredQuery) bool {
	return query.MentionsAny(procedureText(sq), r.JointProcedureTerms)
}

func (r Rules) isOrthopedic(sq query.StructuredQuery) bool {
	return r.isJointProcedure(sq) || query.MentionsAny(procedureText(sq), r.OrthopedicTerms)
}

// isEmergency ignores negated mentions such as "not an emergency".
func (r Rules) isEmergency(sq query.StructuredQuery) bool {
	return sq.Emergency || query.MentionsAffirmed(sq.OriginalQuery, r.EmergencyTerms)
}

func procedureText(sq query.StructuredQuery) string {
	if sq.Procedure != nil {
		return *sq.Procedure
	}
	return sq.OriginalQuery
}

func (r Rules) isEmergencyOrthopedic(sq query.StructuredQuery) bool {
	return r.isEmergency(sq) && r.isOrthopedic(sq)
}

func (r Rules) inWaitingPeriod(sq query.StructuredQuery) bool {
	return r.isJointProcedure(sq) &&
		sq.PolicyDurationMonths != nil &&
		*sq.PolicyDurationMonths < r.WaitingPeriodMonths
}

func (r Rules) pastWaitingPeriod(sq query.StructuredQuery) bool {
	return sq.PolicyDurationMonths != nil && *sq.PolicyDurationMonths >= r.WaitingPeriodMonths
}

// decidableWithoutClauses reports whether the structured fields alone are
// enough to approve a claim.
func (r Rules) decidableWithoutClauses(sq query.StructuredQuery) bool {
	if sq.Procedure == nil {
		return false
	}
	return r.pastWaitingPeriod(sq) || r.isEmergencyOrthopedic(sq)
}

// payoutFor returns the configured payout for the procedure, preferring
// the longest matching entry of the per-procedure table.
func (r Rules) payoutFor(sq query.StructuredQuery) (float64, bool) {
	if sq.Procedure != nil {
		best, bestLen := "", 0
		for name := range r.ProcedurePayouts {
			key := strings.TrimSpace(name)
			if len(key) > bestLen && query.MentionsAny(*sq.Procedure, []string{key}) {
				best, bestLen = name, len(key)
			}
		}
		if best != "" {
			return r.ProcedurePayouts[best], true
		}
	}
	if r.BaselinePayout > 0 {
		return r.BaselinePayout, true
	}
	return 0, false
}

// waitingPeriodClause picks the clause to cite for a waiting-period
// rejection: the first one naming a joint procedure or a waiting period.
func (r Rules) waitingPeriodClause(clauses []retrieval.Clause) retrieval.Clause {
	for _, terms := range [][]string{r.JointProcedureTerms, {"waiting period"}} {
		for _, c := range clauses {
			if query.MentionsAny(c.Content, terms) {
				return c
			}
		}
	}
	return clauses[0]
}

func procedureLabel(sq query.StructuredQuery) string {
	if sq.Procedure != nil && strings.TrimSpace(*sq.Procedure) != "" {
		return strings.TrimSpace(*sq.Procedure)
	}
	return "joint replacement procedures"
}

// citesAny reports whether justification quotes a run of words from any clause.
func citesAny(justification string, clauses []retrieval.Clause) bool {
	text := " " + strings.Join(words(justification), " ") + " "
	for _, c := range clauses {
		cw := words(c.Content)
		n := citationWords
		if len(cw) < n {
			n = len(cw)
		}
		for i := 0; n > 0 && i+n <= len(cw); i++ {
			if strings.Contains(text, " "+strings.Join(cw[i:i+n], " ")+" ") {
				return true
			}
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:excerptRunes])) + "..."
}

func copyAmount(a *float64) *float64 {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
