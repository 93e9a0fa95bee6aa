package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/claimwise/internal/pipeline"
	"github.com/ziadkadry99/claimwise/internal/query"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// handleAskPolicyQuestion answers a question from the retrieved clauses.
func (s *Server) handleAskPolicyQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	res, err := s.orch.Ask(ctx, pipeline.Request{
		UserID: request.GetString("user_id", ""),
		Query:  question,
	})
	if err != nil {
		return toolError("question failed", err), nil
	}

	var sb strings.Builder
	sb.WriteString(res.Answer)
	if len(res.Clauses) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(formatClauses(res.Clauses))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleAdjudicateClaim runs the claim flow and returns the summary line
// followed by the full decision as JSON.
func (s *Server) handleAdjudicateClaim(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	overrides, err := overridesFrom(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.orch.Adjudicate(ctx, pipeline.Request{Query: q, Overrides: overrides})
	if err != nil {
		return toolError("adjudication failed", err), nil
	}

	data, err := json.MarshalIndent(res.Decision, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding decision: %v", err)), nil
	}
	return mcp.NewToolResultText(res.Summary + "\n\n" + string(data)), nil
}

// handleSearchPolicyClauses returns the clauses found for a query without
// generating an answer.
func (s *Server) handleSearchPolicyClauses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	res, err := s.orch.Search(ctx, q)
	if err != nil {
		return toolError("search failed", err), nil
	}

	if len(res.Clauses) == 0 {
		return mcp.NewToolResultText("No matching clauses found. The policy documents may not be indexed yet. Run `claimwise index` to index them."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Search phrases: %s\n\n", strings.Join(res.Phrases, "; "))
	sb.WriteString(formatClauses(res.Clauses))
	return mcp.NewToolResultText(sb.String()), nil
}

func toolError(prefix string, err error) *mcp.CallToolResult {
	if errors.Is(err, pipeline.ErrEmptyQuery) {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// overridesFrom reads the optional patient fields from tool arguments.
func overridesFrom(args map[string]any) (*query.Overrides, error) {
	var o query.Overrides
	set := false

	if v, ok := args["age"]; ok {
		n, ok := asInt(v)
		if !ok {
			return nil, errors.New("age must be a number")
		}
		o.Age, set = &n, true
	}
	if v, ok := args["policy_duration_months"]; ok {
		n, ok := asInt(v)
		if !ok {
			return nil, errors.New("policy_duration_months must be a number")
		}
		o.PolicyDurationMonths, set = &n, true
	}
	if v, ok := args["gender"].(string); ok && v != "" {
		g, ok := query.ParseGender(v)
		if !ok {
			return nil, fmt.Errorf("unknown gender %q", v)
		}
		o.Gender, set = &g, true
	}
	if v, ok := args["procedure"].(string); ok && v != "" {
		o.Procedure, set = &v, true
	}
	if v, ok := args["location"].(string); ok && v != "" {
		o.Location, set = &v, true
	}
	if v, ok := args["is_emergency"].(bool); ok {
		o.Emergency, set = &v, true
	}

	if !set {
		return nil, nil
	}
	return &o, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

// formatClauses renders clauses in a compact form for AI agent consumption.
func formatClauses(clauses []retrieval.Clause) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d clause(s):\n", len(clauses))
	for i, c := range clauses {
		fmt.Fprintf(&sb, "\n--- Clause %d ---\n", i+1)
		if c.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", c.Source)
		}
		if c.Similarity > 0 {
			fmt.Fprintf(&sb, "Similarity: %.2f\n", c.Similarity)
		}
		sb.WriteString(strings.TrimSpace(c.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}
