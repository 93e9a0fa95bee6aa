package query

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
)

const maxAge = 130

var leadingNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

// Extractor builds StructuredQuery records with a text generator.
type Extractor struct {
	gen            llm.Generator
	logger         *zap.Logger
	emergencyTerms []string
}

// NewExtractor returns an Extractor. emergencyTerms mark a query as an
// emergency when the generated record does not say and one of them appears,
// not negated, in the original text.
func NewExtractor(gen llm.Generator, emergencyTerms []string, logger *zap.Logger) *Extractor {
	return &Extractor{
		gen:            gen,
		logger:         logging.OrNop(logger),
		emergencyTerms: emergencyTerms,
	}
}

// Extract never fails: a generator error, timeout or unparseable answer
// yields Fallback(q). Wrongly typed fields are dropped one by one.
func (e *Extractor) Extract(ctx context.Context, q string) StructuredQuery {
	start := time.Now()
	defer metrics.ObserveStage("extraction", start)

	sq, stated, err := e.extract(ctx, q)
	if err != nil {
		e.logger.Warn("query extraction failed, using fallback",
			zap.String("stage", "extraction"),
			zap.Error(err))
		metrics.IncFallback("extraction")
		sq, stated = Fallback(q), false
	}
	if !stated && MentionsAffirmed(q, e.emergencyTerms) {
		sq.Emergency = true
	}
	return sq
}

// extract also reports whether the generated record stated is_emergency.
func (e *Extractor) extract(ctx context.Context, q string) (StructuredQuery, bool, error) {
	if e.gen == nil {
		return StructuredQuery{}, false, fmt.Errorf("no generator configured")
	}
	raw, err := e.gen.Generate(ctx, fmt.Sprintf(extractionPromptTemplate, q))
	if err != nil {
		return StructuredQuery{}, false, err
	}
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return StructuredQuery{}, false, err
	}
	doc := gjson.Parse(obj)
	_, stated := boolField(doc.Get("is_emergency"))
	return parseStructured(q, doc), stated, nil
}

// parseStructured coerces each field of a generated record independently.
func parseStructured(q string, doc gjson.Result) StructuredQuery {
	sq := StructuredQuery{
		OriginalQuery:        q,
		Age:                  coerceInt(doc.Get("age"), 0, maxAge, false),
		Procedure:            coerceString(doc.Get("procedure")),
		Location:             coerceString(doc.Get("location")),
		PolicyDurationMonths: coerceInt(doc.Get("policy_duration_months"), 0, math.MaxInt32, true),
		QueryType:            coerceQueryType(doc.Get("query_type")),
		Keywords:             coerceStrings(doc.Get("keywords")),
		Emergency:            coerceBool(doc.Get("is_emergency")),
	}
	if g := doc.Get("gender"); g.Type == gjson.String {
		if gender, ok := ParseGender(g.String()); ok {
			sq.Gender = &gender
		}
	}
	if len(sq.Keywords) == 0 {
		sq.Keywords = []string{q}
	}
	return sq
}

// coerceInt accepts whole JSON numbers or strings starting with a number
// ("46", "3 months"). With years set, a string mentioning years is
// converted to months.
func coerceInt(r gjson.Result, min, max int, years bool) *int {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Float()
	case gjson.String:
		m := leadingNumber.FindStringSubmatch(r.String())
		if m == nil {
			return nil
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil
		}
		f = v
		if years && strings.Contains(strings.ToLower(r.String()), "year") {
			f *= 12
		}
	default:
		return nil
	}
	if f != math.Trunc(f) || f < float64(min) || f > float64(max) {
		return nil
	}
	n := int(f)
	return &n
}

var absentWords = map[string]bool{
	"":              true,
	"null":          true,
	"none":          true,
	"n/a":           true,
	"na":            true,
	"unknown":       true,
	"not mentioned": true,
}

func coerceString(r gjson.Result) *string {
	if r.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(r.String())
	if absentWords[strings.ToLower(s)] {
		return nil
	}
	return &s
}

func coerceQueryType(r gjson.Result) QueryType {
	if r.Type == gjson.String {
		if t := QueryType(strings.ToLower(strings.TrimSpace(r.String()))); t.Valid() {
			return t
		}
	}
	return TypeGeneral
}

// coerceStrings accepts an array of strings (non-strings skipped) or a
// single comma-separated string.
func coerceStrings(r gjson.Result) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch {
	case r.IsArray():
		for _, item := range r.Array() {
			if item.Type == gjson.String {
				add(item.String())
			}
		}
	case r.Type == gjson.String:
		for _, part := range strings.Split(r.String(), ",") {
			add(part)
		}
	}
	return dedupe(out)
}

func coerceBool(r gjson.Result) bool {
	v, _ := boolField(r)
	return v
}

// boolField reads a JSON boolean or a "true"/"yes"/"false"/"no" string.
// ok is false when the field is missing, null or of another type.
func boolField(r gjson.Result) (v, ok bool) {
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(r.String())) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// dedupe removes repeated strings, keeping first occurrences in order.
func dedupe(items []string) []string {
	if len(items) == 0 {
		return items
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
