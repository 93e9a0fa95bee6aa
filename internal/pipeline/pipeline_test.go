package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ziadkadry99/claimwise/internal/audit"
	"github.com/ziadkadry99/claimwise/internal/db"
	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/history"
	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// scriptedGenerator answers each pipeline prompt with a canned response,
// picking the response by a marker phrase in the prompt.
type scriptedGenerator struct {
	mu        sync.Mutex
	extract   string
	expand    string
	decide    string
	answer    string
	answerErr error
	calls     map[string]int
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}
	switch {
	case strings.Contains(prompt, "Extract structured information"):
		g.calls["extract"]++
		return g.extract, nil
	case strings.Contains(prompt, "alternative search phrases"):
		g.calls["expand"]++
		return g.expand, nil
	case strings.Contains(prompt, "claims adjudicator"):
		g.calls["decide"]++
		return g.decide, nil
	case strings.Contains(prompt, "policy assistant"):
		g.calls["answer"]++
		return g.answer, g.answerErr
	}
	return "", errors.New("unexpected prompt")
}

func (g *scriptedGenerator) count(stage string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[stage]
}

const kneeExtraction = `{"age": 46, "gender": "male", "procedure": "knee surgery", "location": "Pune",
"policy_duration_months": 3, "query_type": "claim", "is_emergency": false, "keywords": ["knee surgery", "waiting period"]}`

const approvedDecision = `{"decision": "APPROVED", "amount": 120000, "justification": "Knee surgery is covered.", "risk_factors": [], "coverage_status": "full"}`

var policyClauses = []retrieval.Clause{
	{Content: "Joint replacement and knee surgery are not covered during the first 24 months of the policy."},
	{Content: "Emergency treatment following an accident is covered from day one."},
	{Content: "Cataract surgery is payable after a two year waiting period."},
}

func policySearcher(clauses []retrieval.Clause) retrieval.Searcher {
	return retrieval.SearcherFunc(func(_ context.Context, _ string, limit int) ([]retrieval.Clause, error) {
		if limit > len(clauses) {
			limit = len(clauses)
		}
		return clauses[:limit], nil
	})
}

func newTestOrchestrator(gen llm.Generator, searcher retrieval.Searcher, deps Deps) *Orchestrator {
	rules := decision.DefaultRules()
	deps.Extractor = query.NewExtractor(gen, rules.EmergencyTerms, nil)
	deps.Expander = query.NewExpander(gen, nil)
	deps.Retriever = retrieval.NewService(searcher, retrieval.DefaultOptions(), nil)
	deps.Decider = decision.NewEngine(gen, rules, nil)
	deps.Answerer = NewAnswerer(gen, nil, 0, nil)
	return New(deps, Options{})
}

func TestEndToEndKneeSurgeryRejected(t *testing.T) {
	gen := &scriptedGenerator{
		extract: kneeExtraction,
		expand:  `{"phrases": ["knee surgery waiting period", "orthopedic exclusions"]}`,
		decide:  approvedDecision,
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	res, err := o.Handle(context.Background(), Request{
		Query: "46-year-old male needs knee surgery in Pune with 3 months policy duration",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	sq := res.Structured
	if sq.Age == nil || *sq.Age != 46 {
		t.Errorf("age = %v, want 46", sq.Age)
	}
	if sq.Gender == nil || *sq.Gender != query.GenderMale {
		t.Errorf("gender = %v, want M", sq.Gender)
	}
	if sq.Procedure == nil || !strings.Contains(*sq.Procedure, "knee surgery") {
		t.Errorf("procedure = %v, want knee surgery", sq.Procedure)
	}
	if sq.Location == nil || *sq.Location != "Pune" {
		t.Errorf("location = %v, want Pune", sq.Location)
	}
	if sq.PolicyDurationMonths == nil || *sq.PolicyDurationMonths != 3 {
		t.Errorf("policy duration = %v, want 3", sq.PolicyDurationMonths)
	}

	if res.Type != TypeClaimProcessing || res.Decision == nil {
		t.Fatalf("expected claim processing with a decision, got %s", res.Type)
	}
	d := res.Decision
	if d.Outcome != decision.Rejected || d.CoverageStatus != decision.CoverageNone || d.Amount != nil {
		t.Errorf("expected REJECTED/none/nil, got %s/%s/%v", d.Outcome, d.CoverageStatus, d.Amount)
	}
	if !strings.HasPrefix(res.Summary, "❌ CLAIM REJECTED - ") {
		t.Errorf("unexpected summary %q", res.Summary)
	}
	if diff := cmp.Diff([]string{"knee surgery", "waiting period", "knee surgery waiting period", "orthopedic exclusions"}, res.Phrases); diff != "" {
		t.Errorf("phrases mismatch (-want +got):\n%s", diff)
	}
	if len(res.Clauses) != 2 {
		t.Errorf("expected 2 deduplicated clauses, got %d", len(res.Clauses))
	}
}

func TestRouteByTrigger(t *testing.T) {
	o := New(Deps{}, Options{})
	tests := []struct {
		q    string
		want Route
	}{
		{"Does my policy cover cataract SURGERY?", RouteClaim},
		{"I want to file a claim for hospitalization", RouteClaim},
		{"What is the grace period for premium payment?", RouteGeneral},
		{"", RouteGeneral},
	}
	for _, tt := range tests {
		if got := o.Route(tt.q); got != tt.want {
			t.Errorf("Route(%q) = %s, want %s", tt.q, got, tt.want)
		}
	}
}

func TestSurgeryQueryReachesClaimFlow(t *testing.T) {
	// The extractor labels the query as general; the trigger still wins.
	gen := &scriptedGenerator{
		extract: `{"query_type": "general", "procedure": "cataract surgery", "policy_duration_months": 30, "keywords": ["cataract"]}`,
		expand:  `{"phrases": []}`,
		decide:  `{"decision": "APPROVED", "amount": 30000, "justification": "Cataract surgery is payable after a two year waiting period.", "risk_factors": [], "coverage_status": "full"}`,
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses[2:]), Deps{})

	res, err := o.Handle(context.Background(), Request{Query: "what about cataract surgery?"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Route != RouteClaim || res.Decision == nil {
		t.Fatalf("expected claim flow, got route %s", res.Route)
	}
	if gen.count("decide") != 1 || gen.count("answer") != 0 {
		t.Errorf("unexpected generator calls %v", gen.calls)
	}
	if res.Decision.Outcome != decision.Approved || *res.Decision.Amount != 30000 {
		t.Errorf("unexpected decision %+v", res.Decision)
	}
	if res.Summary != "✅ CLAIM APPROVED - Amount: ₹30,000 | Cataract surgery is payable after a two year waiting period." {
		t.Errorf("unexpected summary %q", res.Summary)
	}
}

func TestGeneralQuery(t *testing.T) {
	gen := &scriptedGenerator{
		extract: `{"query_type": "premium", "keywords": ["grace period"]}`,
		expand:  `garbage`,
		answer:  "  The grace period is 30 days.  ",
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	res, err := o.Handle(context.Background(), Request{Query: "What is the grace period?"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Type != TypeGeneralQuery || res.Decision != nil {
		t.Fatalf("expected general query without decision, got %s", res.Type)
	}
	if res.Answer != "The grace period is 30 days." {
		t.Errorf("answer = %q", res.Answer)
	}
}

func TestGeneralQueryWithoutClauses(t *testing.T) {
	gen := &scriptedGenerator{extract: `{"query_type": "coverage", "keywords": ["dental"]}`, expand: `{"phrases": []}`}
	o := newTestOrchestrator(gen, policySearcher(nil), Deps{})

	res, err := o.Ask(context.Background(), Request{Query: "Is dental covered?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != NotFoundAnswer {
		t.Errorf("answer = %q, want NotFoundAnswer", res.Answer)
	}
	if gen.count("answer") != 0 {
		t.Error("generator should not be called without clauses")
	}
}

func TestAnswerFailure(t *testing.T) {
	gen := &scriptedGenerator{
		extract:   `{"keywords": ["maternity"]}`,
		expand:    `{"phrases": []}`,
		answerErr: errors.New("quota exceeded"),
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	res, err := o.Ask(context.Background(), Request{Query: "maternity cover?"})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if res.Answer != ApologyAnswer {
		t.Errorf("answer = %q, want ApologyAnswer", res.Answer)
	}
}

func TestAdjudicateOverrides(t *testing.T) {
	gen := &scriptedGenerator{
		extract: kneeExtraction,
		expand:  `{"phrases": []}`,
		decide:  `{"decision": "APPROVED", "amount": null, "justification": "Joint replacement and knee surgery are not covered during the first 24 months of the policy; this policy is older.", "risk_factors": [], "coverage_status": "full"}`,
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	months := 36
	res, err := o.Adjudicate(context.Background(), Request{
		Query:     "knee surgery claim",
		Overrides: &query.Overrides{PolicyDurationMonths: &months},
	})
	if err != nil {
		t.Fatalf("Adjudicate: %v", err)
	}
	d := res.Decision
	if d.Outcome != decision.Approved {
		t.Fatalf("override should lift the waiting period, got %s", d.Outcome)
	}
	if d.Amount == nil || *d.Amount != 50000 {
		t.Errorf("expected baseline payout, got %v", d.Amount)
	}
	if *d.PatientDetails.PolicyDurationMonths != 36 {
		t.Errorf("patient details not overridden: %v", *d.PatientDetails.PolicyDurationMonths)
	}
}

func TestHandleWithDecision(t *testing.T) {
	gen := &scriptedGenerator{
		extract: kneeExtraction,
		expand:  `{"phrases": []}`,
		decide:  approvedDecision,
		answer:  "Knee surgery has a 24 month waiting period.",
	}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	res, err := o.HandleWithDecision(context.Background(), Request{Query: "knee surgery claim at 3 months"})
	if err != nil {
		t.Fatalf("HandleWithDecision: %v", err)
	}
	if res.Answer == "" || res.Decision == nil {
		t.Fatalf("expected answer and decision, got %+v", res)
	}
	if res.Type != TypeClaimProcessing {
		t.Errorf("type = %s", res.Type)
	}

	gen.extract = `{"keywords": ["premium"]}`
	res, err = o.HandleWithDecision(context.Background(), Request{Query: "how is the premium computed"})
	if err != nil {
		t.Fatalf("HandleWithDecision: %v", err)
	}
	if res.Decision != nil || res.Type != TypeGeneralQuery {
		t.Errorf("general query should not be adjudicated: %+v", res)
	}
}

func TestBatchPreservesOrder(t *testing.T) {
	gen := llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Extract structured information"):
			// Later queries answer faster so completion order differs from input order.
			for i := 0; i < 4; i++ {
				if strings.Contains(prompt, fmt.Sprintf("claim #%d", i)) {
					time.Sleep(time.Duration(4-i) * 5 * time.Millisecond)
				}
			}
			return `{"keywords": ["claim"]}`, nil
		case strings.Contains(prompt, "claims adjudicator"):
			return `{"decision": "REJECTED", "amount": null, "justification": "Not covered.", "risk_factors": [], "coverage_status": "none"}`, nil
		}
		return `{"phrases": []}`, nil
	})
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{})

	queries := []string{"claim #0", "claim #1", "claim #2", "claim #3"}
	results, err := o.Batch(context.Background(), queries)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	for i, res := range results {
		if res.Query != queries[i] {
			t.Errorf("result %d is for %q, want %q", i, res.Query, queries[i])
		}
		if res.Decision == nil {
			t.Errorf("result %d has no decision", i)
		}
	}

	if _, err := o.Batch(context.Background(), []string{"claim", " "}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestEmptyQuery(t *testing.T) {
	o := New(Deps{}, Options{})
	ctx := context.Background()
	for name, run := range map[string]func() (*Result, error){
		"Handle":             func() (*Result, error) { return o.Handle(ctx, Request{Query: "  "}) },
		"Ask":                func() (*Result, error) { return o.Ask(ctx, Request{}) },
		"Adjudicate":         func() (*Result, error) { return o.Adjudicate(ctx, Request{}) },
		"HandleWithDecision": func() (*Result, error) { return o.HandleWithDecision(ctx, Request{}) },
		"Search":             func() (*Result, error) { return o.Search(ctx, "") },
	} {
		if _, err := run(); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("%s: expected ErrEmptyQuery, got %v", name, err)
		}
	}
}

func TestRecordsHistoryAndAudit(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer database.Close()
	store := history.NewSQLiteStore(database, 0)
	auditStore := audit.NewStore(database)

	gen := &scriptedGenerator{extract: kneeExtraction, expand: `{"phrases": []}`, decide: approvedDecision, answer: "Yes."}
	o := newTestOrchestrator(gen, policySearcher(policyClauses), Deps{History: store, Audit: auditStore})
	ctx := context.Background()

	if _, err := o.Handle(ctx, Request{UserID: "alice", Query: "knee surgery claim"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if _, err := o.Handle(ctx, Request{UserID: "alice", Query: "what is covered?"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if !strings.HasPrefix(msgs[1].Content, "❌ CLAIM REJECTED") {
		t.Errorf("claim reply should be the summary, got %q", msgs[1].Content)
	}
	if msgs[1].Metadata["decision"] != "REJECTED" {
		t.Errorf("metadata = %v", msgs[1].Metadata)
	}
	if msgs[3].Content != "Yes." {
		t.Errorf("general reply = %q", msgs[3].Content)
	}

	entries, err := auditStore.Query(ctx, audit.QueryFilter{UserID: "alice"})
	if err != nil {
		t.Fatalf("audit Query: %v", err)
	}
	if len(entries) != 1 || entries[0].Outcome != decision.Rejected {
		t.Errorf("unexpected audit entries %+v", entries)
	}
}

func TestAnswerPromptBudget(t *testing.T) {
	a := NewAnswerer(nil, nil, 10, nil)
	clauses := []retrieval.Clause{
		{Content: strings.Repeat("first clause text ", 4)},
		{Content: strings.Repeat("second clause text ", 4)},
	}
	prompt := a.prompt("q?", clauses, []history.Message{{Role: history.RoleUser, Content: "earlier"}})
	if !strings.Contains(prompt, "[1] first clause") {
		t.Error("first clause should always be included")
	}
	if strings.Contains(prompt, "second clause") {
		t.Error("second clause should be dropped by the token budget")
	}
	if !strings.Contains(prompt, "user: earlier") {
		t.Error("prompt should include earlier conversation")
	}
}

func TestAnswerNotFoundPhrase(t *testing.T) {
	const phrase = "not found in context"
	prompt := NewAnswerer(nil, nil, 0, nil).prompt("is dental covered?", []retrieval.Clause{{Content: "Dental care is excluded."}}, nil)
	if !strings.Contains(strings.ToLower(prompt), phrase) {
		t.Errorf("prompt should name the %q reply:\n%s", phrase, prompt)
	}
	if !strings.HasPrefix(strings.ToLower(NotFoundAnswer), phrase) {
		t.Errorf("NotFoundAnswer = %q, want it to start with %q", NotFoundAnswer, phrase)
	}
}
