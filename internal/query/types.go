// Package query turns free-text insurance questions into structured
// records and broadens them into retrieval phrases.
package query

import "strings"

// Gender is the patient gender as stated in the query.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// QueryType classifies what the user is asking about.
type QueryType string

const (
	TypeCoverage  QueryType = "coverage"
	TypeExclusion QueryType = "exclusion"
	TypeClaim     QueryType = "claim"
	TypePremium   QueryType = "premium"
	TypeGeneral   QueryType = "general"
)

// Valid reports whether t is one of the known query types.
func (t QueryType) Valid() bool {
	switch t {
	case TypeCoverage, TypeExclusion, TypeClaim, TypePremium, TypeGeneral:
		return true
	}
	return false
}

// StructuredQuery is the structured view of one user query. Absent
// fields are nil. OriginalQuery is set at construction and never changed.
type StructuredQuery struct {
	OriginalQuery         string    `json:"original_query"`
	Age                   *int      `json:"age"`
	Gender                *Gender   `json:"gender"`
	Procedure             *string   `json:"procedure"`
	Location              *string   `json:"location"`
	PolicyDurationMonths  *int      `json:"policy_duration_months"`
	QueryType             QueryType `json:"query_type"`
	Keywords              []string  `json:"keywords"`
	EnhancedSearchPhrases []string  `json:"enhanced_search_phrases,omitempty"`
	Emergency             bool      `json:"is_emergency"`
}

// Fallback returns the record used when extraction fails: every typed
// field absent, general query type and the query itself as the only keyword.
func Fallback(q string) StructuredQuery {
	return StructuredQuery{
		OriginalQuery: q,
		QueryType:     TypeGeneral,
		Keywords:      []string{q},
	}
}

// Overrides replaces extracted fields with caller-supplied patient data.
// Nil fields leave the extracted value untouched.
type Overrides struct {
	Age                  *int    `json:"age,omitempty"`
	Gender               *Gender `json:"gender,omitempty"`
	Procedure            *string `json:"procedure,omitempty"`
	Location             *string `json:"location,omitempty"`
	PolicyDurationMonths *int    `json:"policy_duration_months,omitempty"`
	Emergency            *bool   `json:"is_emergency,omitempty"`
}

// Apply returns a copy of sq with the non-nil overrides applied.
func (o *Overrides) Apply(sq StructuredQuery) StructuredQuery {
	if o == nil {
		return sq
	}
	if o.Age != nil {
		sq.Age = o.Age
	}
	if o.Gender != nil {
		if g, ok := ParseGender(string(*o.Gender)); ok {
			sq.Gender = &g
		}
	}
	if o.Procedure != nil {
		sq.Procedure = o.Procedure
	}
	if o.Location != nil {
		sq.Location = o.Location
	}
	if o.PolicyDurationMonths != nil {
		sq.PolicyDurationMonths = o.PolicyDurationMonths
	}
	if o.Emergency != nil {
		sq.Emergency = *o.Emergency
	}
	return sq
}

// ParseGender normalizes the usual spellings of male and female.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "man":
		return GenderMale, true
	case "f", "female", "woman":
		return GenderFemale, true
	}
	return "", false
}

// ContainsAny reports whether the lowercase form of text contains any of terms.
func ContainsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
