package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// mockGenerator answers pipeline prompts by marker phrase.
type mockGenerator struct{}

func (mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Extract structured information"):
		return `{"age": 46, "gender": "M", "procedure": "knee surgery", "location": "Pune",
"policy_duration_months": 3, "query_type": "claim", "is_emergency": false, "keywords": []}`, nil
	case strings.Contains(prompt, "alternative search phrases"):
		return `["knee surgery waiting period"]`, nil
	case strings.Contains(prompt, "claims adjudicator"):
		return `{"decision": "APPROVED", "amount": 90000, "justification": "Knee surgery is covered.", "risk_factors": [], "coverage_status": "full"}`, nil
	case strings.Contains(prompt, "policy assistant"):
		return "Knee surgery is covered after 24 months.", nil
	}
	return "", errors.New("unexpected prompt")
}

func newTestServer(clauses []retrieval.Clause) *Server {
	gen := mockGenerator{}
	rules := decision.DefaultRules()
	searcher := retrieval.SearcherFunc(func(context.Context, string, int) ([]retrieval.Clause, error) {
		return clauses, nil
	})
	orch := pipeline.New(pipeline.Deps{
		Extractor: query.NewExtractor(gen, rules.EmergencyTerms, nil),
		Expander:  query.NewExpander(gen, nil),
		Retriever: retrieval.NewService(searcher, retrieval.DefaultOptions(), nil),
		Decider:   decision.NewEngine(gen, rules, nil),
		Answerer:  pipeline.NewAnswerer(gen, nil, 0, nil),
	}, pipeline.Options{})
	return NewServer(orch)
}

var testClauses = []retrieval.Clause{
	{Content: "Knee surgery is excluded during the first 24 months of cover.", Source: "policy.md", Similarity: 0.91},
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name     string
		tool     mcp.Tool
		wantName string
	}{
		{"ask_policy_question", askPolicyQuestionTool, "ask_policy_question"},
		{"adjudicate_claim", adjudicateClaimTool, "adjudicate_claim"},
		{"search_policy_clauses", searchPolicyClausesTool, "search_policy_clauses"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(nil)
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.mcp == nil {
		t.Fatal("MCP server not initialized")
	}
}

func TestHandleAskPolicyQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("answer with clauses", func(t *testing.T) {
		srv := newTestServer(testClauses)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "Is knee surgery covered?"}

		result, err := srv.handleAskPolicyQuestion(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %v", result.Content)
		}
		text := resultText(t, result)
		if !strings.HasPrefix(text, "Knee surgery is covered after 24 months.") {
			t.Errorf("unexpected answer %q", text)
		}
		if !strings.Contains(text, "Source: policy.md") {
			t.Errorf("expected clause source in %q", text)
		}
	})

	t.Run("no clauses", func(t *testing.T) {
		srv := newTestServer(nil)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"question": "Is knee surgery covered?"}

		result, _ := srv.handleAskPolicyQuestion(ctx, req)
		if got := resultText(t, result); got != pipeline.NotFoundAnswer {
			t.Errorf("answer = %q, want not-found answer", got)
		}
	})

	t.Run("missing question", func(t *testing.T) {
		srv := newTestServer(nil)
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{}

		result, err := srv.handleAskPolicyQuestion(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.IsError {
			t.Error("expected error for missing question")
		}
	})
}

func TestHandleAdjudicateClaim(t *testing.T) {
	srv := newTestServer(testClauses)
	ctx := context.Background()

	t.Run("waiting period rejection", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "46M knee surgery claim, 3-month policy"}

		result, err := srv.handleAdjudicateClaim(ctx, req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := resultText(t, result)
		if !strings.HasPrefix(text, "❌ CLAIM REJECTED - ") {
			t.Errorf("unexpected summary in %q", text)
		}
		if !strings.Contains(text, `"rule_overrides"`) {
			t.Errorf("expected decision JSON in %q", text)
		}
	})

	t.Run("overrides applied", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{
			"query":                  "knee surgery claim",
			"policy_duration_months": float64(30),
			"gender":                 "F",
		}

		result, _ := srv.handleAdjudicateClaim(ctx, req)
		text := resultText(t, result)
		if !strings.HasPrefix(text, "✅ CLAIM APPROVED") {
			t.Errorf("expected approval after 30 months, got %q", text)
		}
		if !strings.Contains(text, `"gender": "F"`) {
			t.Errorf("expected gender override in %q", text)
		}
	})

	t.Run("bad override", func(t *testing.T) {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = map[string]any{"query": "claim", "age": "old"}

		result, _ := srv.handleAdjudicateClaim(ctx, req)
		if !result.IsError {
			t.Error("expected error for non-numeric age")
		}
	})
}

func TestHandleSearchPolicyClauses(t *testing.T) {
	ctx := context.Background()

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"query": "knee surgery"}

	result, err := newTestServer(testClauses).handleSearchPolicyClauses(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "knee surgery waiting period") || !strings.Contains(text, "Found 1 clause(s)") {
		t.Errorf("unexpected search output %q", text)
	}

	result, _ = newTestServer(nil).handleSearchPolicyClauses(ctx, req)
	if result.IsError {
		t.Error("empty results should not be an error")
	}
	if !strings.Contains(resultText(t, result), "claimwise index") {
		t.Error("expected indexing hint")
	}
}

func TestOverridesFrom(t *testing.T) {
	o, err := overridesFrom(map[string]any{"query": "x"})
	if err != nil || o != nil {
		t.Fatalf("expected no overrides, got %+v, %v", o, err)
	}

	o, err = overridesFrom(map[string]any{"age": float64(52), "is_emergency": true, "location": "Delhi"})
	if err != nil {
		t.Fatalf("overridesFrom: %v", err)
	}
	if *o.Age != 52 || !*o.Emergency || *o.Location != "Delhi" {
		t.Errorf("unexpected overrides %+v", o)
	}

	if _, err := overridesFrom(map[string]any{"gender": "X"}); err == nil {
		t.Error("expected error for unknown gender")
	}
}
