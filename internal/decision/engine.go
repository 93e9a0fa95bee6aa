package decision

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// ErrSchema is wrapped by every rejection of a generated decision.
var ErrSchema = errors.New("decision does not match schema")

// Engine produces a Decision for a structured query and its clauses.
type Engine struct {
	gen    llm.Generator
	rules  Rules
	logger *zap.Logger
}

// NewEngine returns an Engine that proposes with gen and corrects with rules.
func NewEngine(gen llm.Generator, rules Rules, logger *zap.Logger) *Engine {
	return &Engine{gen: gen, rules: rules, logger: logging.OrNop(logger)}
}

// Rules returns the hard rules the engine enforces.
func (e *Engine) Rules() Rules { return e.rules }

// Decide never fails. When the proposal cannot be generated or parsed the
// deterministic FallbackDecision is returned; otherwise the hard rules are
// applied to the proposal and always win.
func (e *Engine) Decide(ctx context.Context, sq query.StructuredQuery, clauses []retrieval.Clause) Decision {
	start := time.Now()
	defer metrics.ObserveStage("decision", start)

	proposal, err := e.propose(ctx, sq, clauses)
	if err != nil {
		e.logger.Warn("decision generation failed, using fallback",
			zap.String("stage", "decision"),
			zap.Int("clauses", len(clauses)),
			zap.Error(err))
		metrics.IncFallback("decision")
		d := FallbackDecision(sq, len(clauses))
		metrics.IncDecision(string(d.Outcome))
		return d
	}

	d := e.rules.Apply(sq, clauses, proposal)
	if len(d.RuleOverrides) > 0 {
		e.logger.Info("coverage rules corrected generated decision",
			zap.Strings("rules", d.RuleOverrides),
			zap.String("proposed", string(proposal.Outcome)),
			zap.String("final", string(d.Outcome)))
	}
	metrics.IncDecision(string(d.Outcome))
	return d
}

func (e *Engine) propose(ctx context.Context, sq query.StructuredQuery, clauses []retrieval.Clause) (Decision, error) {
	if e.gen == nil {
		return Decision{}, fmt.Errorf("no generator configured")
	}
	raw, err := e.gen.Generate(ctx, e.prompt(sq, clauses))
	if err != nil {
		return Decision{}, fmt.Errorf("generate decision: %w", err)
	}
	return parseDecision(raw)
}

func (e *Engine) prompt(sq query.StructuredQuery, clauses []retrieval.Clause) string {
	var ctxText strings.Builder
	if len(clauses) == 0 {
		ctxText.WriteString("(no clauses were retrieved)")
	}
	for i, c := range clauses {
		fmt.Fprintf(&ctxText, "Clause %d: %s\n\n", i+1, strings.TrimSpace(c.Content))
	}

	gender := "Unknown"
	if sq.Gender != nil {
		gender = string(*sq.Gender)
	}
	duration := "Unknown"
	if sq.PolicyDurationMonths != nil {
		duration = fmt.Sprintf("%d months", *sq.PolicyDurationMonths)
	}
	emergency := "No"
	if sq.Emergency {
		emergency = "Yes"
	}

	return fmt.Sprintf(decisionPromptTemplate,
		strings.TrimSpace(ctxText.String()),
		intOrUnknown(sq.Age),
		gender,
		stringOrUnknown(sq.Procedure),
		stringOrUnknown(sq.Location),
		duration,
		emergency,
		sq.OriginalQuery,
		e.rulesText(),
	)
}

func (e *Engine) rulesText() string {
	r := e.rules
	lines := []string{
		fmt.Sprintf("1. Policies active for less than %d months do NOT cover %s.", r.WaitingPeriodMonths, strings.Join(r.JointProcedureTerms, ", ")),
		fmt.Sprintf("2. Only emergency orthopedic care is payable before %d months.", r.WaitingPeriodMonths),
		fmt.Sprintf("3. Default payout for standard surgery is %s unless a clause specifies otherwise.", FormatAmount(r.BaselinePayout, r.Currency)),
		"4. Quote the exact clause text that supports the decision.",
		"5. Use coverage_status \"none\" only together with REJECTED.",
	}
	return strings.Join(lines, "\n")
}

// parseDecision validates a generated decision strictly. Unlike query
// extraction, any wrongly typed field rejects the whole proposal.
func parseDecision(raw string) (Decision, error) {
	obj, err := llm.ExtractJSONObject(raw)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	doc := gjson.Parse(obj)

	var d Decision

	outcome := doc.Get("decision")
	if outcome.Type != gjson.String {
		return Decision{}, fmt.Errorf("%w: decision must be a string", ErrSchema)
	}
	switch Outcome(strings.ToUpper(strings.TrimSpace(outcome.String()))) {
	case Approved:
		d.Outcome = Approved
	case Rejected:
		d.Outcome = Rejected
	default:
		return Decision{}, fmt.Errorf("%w: unknown decision %q", ErrSchema, outcome.String())
	}

	justification := doc.Get("justification")
	if justification.Type != gjson.String || strings.TrimSpace(justification.String()) == "" {
		return Decision{}, fmt.Errorf("%w: justification must be a non-empty string", ErrSchema)
	}
	d.Justification = strings.TrimSpace(justification.String())

	coverage := doc.Get("coverage_status")
	if coverage.Type != gjson.String {
		return Decision{}, fmt.Errorf("%w: coverage_status must be a string", ErrSchema)
	}
	switch CoverageStatus(strings.ToLower(strings.TrimSpace(coverage.String()))) {
	case CoverageFull:
		d.CoverageStatus = CoverageFull
	case CoveragePartial:
		d.CoverageStatus = CoveragePartial
	case CoverageNone:
		d.CoverageStatus = CoverageNone
	default:
		return Decision{}, fmt.Errorf("%w: unknown coverage_status %q", ErrSchema, coverage.String())
	}

	amount := doc.Get("amount")
	switch amount.Type {
	case gjson.Null:
	case gjson.Number:
		v, err := strconv.ParseFloat(amount.Raw, 64)
		if err != nil || v < 0 || math.IsInf(v, 0) {
			return Decision{}, fmt.Errorf("%w: amount %s is not a payable figure", ErrSchema, amount.Raw)
		}
		d.Amount = &v
	default:
		return Decision{}, fmt.Errorf("%w: amount must be a number or null", ErrSchema)
	}

	d.RiskFactors = []string{}
	risks := doc.Get("risk_factors")
	switch {
	case !risks.Exists() || risks.Type == gjson.Null:
	case risks.IsArray():
		for _, item := range risks.Array() {
			if item.Type != gjson.String {
				return Decision{}, fmt.Errorf("%w: risk_factors must contain only strings", ErrSchema)
			}
			if s := strings.TrimSpace(item.String()); s != "" {
				d.RiskFactors = append(d.RiskFactors, s)
			}
		}
	default:
		return Decision{}, fmt.Errorf("%w: risk_factors must be an array", ErrSchema)
	}

	return d, nil
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "Unknown"
	}
	return strconv.Itoa(*v)
}

func stringOrUnknown(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return "Unknown"
	}
	return *v
}
