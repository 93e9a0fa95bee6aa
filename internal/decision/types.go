// Package decision adjudicates insurance claims. A text generator proposes
// a decision and a pure rule layer corrects it against the hard coverage
// rules before it is returned.
package decision

import "github.com/ziadkadry99/claimwise/internal/query"

// Outcome is the final verdict on a claim.
type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
)

// CoverageStatus summarizes how much of a claim is covered.
type CoverageStatus string

const (
	CoverageFull    CoverageStatus = "full"
	CoveragePartial CoverageStatus = "partial"
	CoverageNone    CoverageStatus = "none"
)

// PatientDetails is the snapshot of structured fields a decision used.
type PatientDetails struct {
	Age                  *int          `json:"age"`
	Gender               *query.Gender `json:"gender"`
	Procedure            *string       `json:"procedure"`
	Location             *string       `json:"location"`
	PolicyDurationMonths *int          `json:"policy_duration_months"`
	Emergency            bool          `json:"is_emergency"`
}

// DetailsOf copies the adjudication inputs out of sq.
func DetailsOf(sq query.StructuredQuery) PatientDetails {
	return PatientDetails{
		Age:                  sq.Age,
		Gender:               sq.Gender,
		Procedure:            sq.Procedure,
		Location:             sq.Location,
		PolicyDurationMonths: sq.PolicyDurationMonths,
		Emergency:            sq.Emergency,
	}
}

// Decision is the adjudication outcome for one query.
//
// CoverageNone always comes with Rejected, and Approved always comes with
// CoverageFull or CoveragePartial. Amount is nil on every rejection; an
// approval without an amount carries the "amount undetermined" risk factor.
type Decision struct {
	Outcome           Outcome        `json:"decision"`
	Amount            *float64       `json:"amount"`
	Justification     string         `json:"justification"`
	RiskFactors       []string       `json:"risk_factors"`
	CoverageStatus    CoverageStatus `json:"coverage_status"`
	PatientDetails    PatientDetails `json:"patient_details"`
	Query             string         `json:"query"`
	SourceClauseCount int            `json:"clauses_count"`

	// RuleOverrides lists the ids of hard rules that corrected the
	// generated proposal, in the order they fired.
	RuleOverrides []string `json:"rule_overrides,omitempty"`
	// Fallback is set when the decision could not be generated at all.
	Fallback bool `json:"fallback,omitempty"`
}

// Risk factors and notices the engine writes itself.
const (
	RiskProcessingError    = "processing error"
	RiskAmountUndetermined = "amount undetermined"

	NoClausesNotice       = "No supporting policy clauses were found."
	processingErrorNotice = "The claim could not be evaluated due to a processing error."
)

// FallbackDecision is returned when generation fails or its output cannot
// be trusted.
func FallbackDecision(sq query.StructuredQuery, clauseCount int) Decision {
	return Decision{
		Outcome:           Rejected,
		Justification:     processingErrorNotice,
		RiskFactors:       []string{RiskProcessingError},
		CoverageStatus:    CoverageNone,
		PatientDetails:    DetailsOf(sq),
		Query:             sq.OriginalQuery,
		SourceClauseCount: clauseCount,
		Fallback:          true,
	}
}
