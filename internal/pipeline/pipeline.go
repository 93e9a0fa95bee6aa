// Package pipeline wires extraction, expansion, retrieval, adjudication and
// answer synthesis into the two query flows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/claimwise/internal/audit"
	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/history"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// Route is the flow a query is sent to.
type Route string

const (
	RouteClaim   Route = "claim"
	RouteGeneral Route = "general"
)

// Result types reported to callers.
const (
	TypeClaimProcessing = "claim_processing"
	TypeGeneralQuery    = "general_query"
)

// ErrEmptyQuery is returned when a request carries no query text.
var ErrEmptyQuery = errors.New("query must not be empty")

// Extractor builds a structured record from a free-text query.
type Extractor interface {
	Extract(ctx context.Context, q string) query.StructuredQuery
}

// Expander turns a structured record into search phrases.
type Expander interface {
	Expand(ctx context.Context, sq query.StructuredQuery) []string
}

// Retriever finds clauses for a set of search phrases.
type Retriever interface {
	Retrieve(ctx context.Context, phrases []string, perPhraseLimit, totalLimit int) []retrieval.Clause
}

// Decider adjudicates a claim.
type Decider interface {
	Decide(ctx context.Context, sq query.StructuredQuery, clauses []retrieval.Clause) decision.Decision
}

// AuditLogger records adjudications.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) (string, error)
}

// Deps are the collaborators of an Orchestrator. History and Audit are optional.
type Deps struct {
	Extractor Extractor
	Expander  Expander
	Retriever Retriever
	Decider   Decider
	Answerer  *Answerer
	History   history.Store
	Audit     AuditLogger
	Logger    *zap.Logger
}

// Options tune an Orchestrator.
type Options struct {
	ClaimTriggers    []string
	PerPhraseLimit   int
	TotalLimit       int
	BatchConcurrency int
	// ContextMessages is how many earlier messages the answer prompt sees.
	ContextMessages int
	Currency        string
}

// DefaultOptions returns the standard orchestration settings.
func DefaultOptions() Options {
	return Options{
		ClaimTriggers:    []string{"claim", "surgery"},
		PerPhraseLimit:   2,
		TotalLimit:       5,
		BatchConcurrency: 4,
		ContextMessages:  6,
		Currency:         "INR",
	}
}

// Request is one query to the pipeline.
type Request struct {
	UserID    string           `json:"user_id,omitempty"`
	Query     string           `json:"query"`
	Overrides *query.Overrides `json:"patient_data,omitempty"`
}

// Result is the outcome of one request.
type Result struct {
	Type       string                `json:"type"`
	Route      Route                 `json:"route"`
	Query      string                `json:"query"`
	Structured query.StructuredQuery `json:"parsed_query"`
	Phrases    []string              `json:"search_strategy"`
	Clauses    []retrieval.Clause    `json:"clauses"`
	Answer     string                `json:"answer,omitempty"`
	Decision   *decision.Decision    `json:"decision,omitempty"`
	Summary    string                `json:"summary,omitempty"`
}

// Orchestrator routes queries through the pipeline.
type Orchestrator struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New returns an Orchestrator. Zero-valued options fall back to DefaultOptions.
func New(deps Deps, opts Options) *Orchestrator {
	def := DefaultOptions()
	if len(opts.ClaimTriggers) == 0 {
		opts.ClaimTriggers = def.ClaimTriggers
	}
	if opts.PerPhraseLimit <= 0 {
		opts.PerPhraseLimit = def.PerPhraseLimit
	}
	if opts.TotalLimit <= 0 {
		opts.TotalLimit = def.TotalLimit
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = def.BatchConcurrency
	}
	if opts.ContextMessages < 0 {
		opts.ContextMessages = 0
	}
	if opts.Currency == "" {
		opts.Currency = def.Currency
	}
	if deps.Answerer == nil {
		deps.Answerer = NewAnswerer(nil, nil, 0, deps.Logger)
	}
	return &Orchestrator{deps: deps, opts: opts, logger: logging.OrNop(deps.Logger)}
}

// Route sends a query to the claim flow when it mentions any claim
// trigger. The extracted query type plays no part.
func (o *Orchestrator) Route(q string) Route {
	if query.ContainsAny(q, o.opts.ClaimTriggers) {
		return RouteClaim
	}
	return RouteGeneral
}

// Handle routes req and runs the matching flow.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	route := o.Route(req.Query)
	metrics.IncRoute(string(route))
	o.logger.Debug("routed query", zap.String("route", string(route)), zap.String("user", req.UserID))

	if route == RouteClaim {
		return o.Adjudicate(ctx, req)
	}
	return o.Ask(ctx, req)
}

// Ask runs the general question flow regardless of routing.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	res := o.prepare(ctx, req)
	res.Type = TypeGeneralQuery
	res.Route = RouteGeneral
	res.Answer = o.deps.Answerer.Answer(ctx, req.Query, res.Clauses, o.priorMessages(ctx, req.UserID))

	if err := o.record(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Adjudicate runs the claim flow regardless of routing. Overrides in req
// replace extracted patient fields.
func (o *Orchestrator) Adjudicate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	res := o.prepare(ctx, req)
	res.Type = TypeClaimProcessing
	res.Route = RouteClaim
	o.decide(ctx, req, res)

	if err := o.record(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// HandleWithDecision always answers the question and, when the query
// routes to the claim flow, adjudicates it from the same clauses.
func (o *Orchestrator) HandleWithDecision(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	route := o.Route(req.Query)
	metrics.IncRoute(string(route))

	res := o.prepare(ctx, req)
	res.Route = route
	res.Type = TypeGeneralQuery
	res.Answer = o.deps.Answerer.Answer(ctx, req.Query, res.Clauses, o.priorMessages(ctx, req.UserID))
	if route == RouteClaim {
		res.Type = TypeClaimProcessing
		o.decide(ctx, req, res)
	}

	if err := o.record(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Batch adjudicates queries concurrently. Results keep the input order.
func (o *Orchestrator) Batch(ctx context.Context, queries []string) ([]*Result, error) {
	results := make([]*Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.BatchConcurrency)
	for i, q := range queries {
		g.Go(func() error {
			res, err := o.Adjudicate(gctx, Request{Query: q})
			if err != nil {
				return fmt.Errorf("query %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Search runs extraction, expansion and retrieval only.
func (o *Orchestrator) Search(ctx context.Context, q string) (*Result, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	return o.prepare(ctx, Request{Query: q}), nil
}

// Currency is the currency decisions are formatted in.
func (o *Orchestrator) Currency() string { return o.opts.Currency }

// History returns the conversation store, or nil when none is configured.
func (o *Orchestrator) History() history.Store { return o.deps.History }

func (o *Orchestrator) prepare(ctx context.Context, req Request) *Result {
	sq := o.deps.Extractor.Extract(ctx, req.Query)
	sq = req.Overrides.Apply(sq)

	phrases := o.deps.Expander.Expand(ctx, sq)
	sq.EnhancedSearchPhrases = phrases

	clauses := o.deps.Retriever.Retrieve(ctx, phrases, o.opts.PerPhraseLimit, o.opts.TotalLimit)
	o.logger.Debug("retrieved clauses",
		zap.Int("phrases", len(phrases)),
		zap.Int("clauses", len(clauses)))

	return &Result{
		Query:      req.Query,
		Structured: sq,
		Phrases:    phrases,
		Clauses:    clauses,
	}
}

func (o *Orchestrator) decide(ctx context.Context, req Request, res *Result) {
	d := o.deps.Decider.Decide(ctx, res.Structured, res.Clauses)
	res.Decision = &d
	res.Summary = decision.Summary(d, o.opts.Currency)

	if o.deps.Audit != nil {
		if _, err := o.deps.Audit.Log(ctx, audit.FromDecision(req.UserID, d)); err != nil {
			o.logger.Warn("recording decision audit failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) priorMessages(ctx context.Context, userID string) []history.Message {
	if o.deps.History == nil || userID == "" || o.opts.ContextMessages == 0 {
		return nil
	}
	msgs, err := o.deps.History.List(ctx, userID)
	if err != nil {
		o.logger.Warn("reading conversation history failed", zap.String("user", userID), zap.Error(err))
		return nil
	}
	if len(msgs) > o.opts.ContextMessages {
		msgs = msgs[len(msgs)-o.opts.ContextMessages:]
	}
	return msgs
}

func (o *Orchestrator) record(ctx context.Context, req Request, res *Result) error {
	if o.deps.History == nil || req.UserID == "" {
		return nil
	}
	reply := res.Answer
	meta := map[string]any{"type": res.Type}
	if res.Decision != nil {
		meta["decision"] = string(res.Decision.Outcome)
		if reply == "" {
			reply = res.Summary
		}
	}
	if err := o.deps.History.Append(ctx, req.UserID,
		history.UserMessage(req.Query),
		history.AssistantMessage(reply, meta),
	); err != nil {
		return fmt.Errorf("recording conversation: %w", err)
	}
	return nil
}
