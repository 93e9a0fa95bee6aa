package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askPolicyQuestionTool defines the ask_policy_question MCP tool.
var askPolicyQuestionTool = mcp.NewTool("ask_policy_question",
	mcp.WithDescription("Answer a question about the indexed insurance policy documents, quoting the relevant clauses."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question about the policy"),
	),
	mcp.WithString("user_id",
		mcp.Description("Conversation to record the exchange under"),
	),
)

// adjudicateClaimTool defines the adjudicate_claim MCP tool.
var adjudicateClaimTool = mcp.NewTool("adjudicate_claim",
	mcp.WithDescription("Decide whether a claim is approved or rejected under the policy, with payout amount and justification."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Free-text claim description, e.g. \"46M, knee surgery, Pune, 3-month policy\""),
	),
	mcp.WithNumber("age",
		mcp.Description("Patient age in years; overrides the value read from the query"),
	),
	mcp.WithString("gender",
		mcp.Description("Patient gender"),
		mcp.Enum("M", "F"),
	),
	mcp.WithString("procedure",
		mcp.Description("Medical procedure being claimed"),
	),
	mcp.WithString("location",
		mcp.Description("City where treatment takes place"),
	),
	mcp.WithNumber("policy_duration_months",
		mcp.Description("How long the policy has been active, in months"),
	),
	mcp.WithBoolean("is_emergency",
		mcp.Description("Whether the treatment is an emergency"),
	),
)

// searchPolicyClausesTool defines the search_policy_clauses MCP tool.
var searchPolicyClausesTool = mcp.NewTool("search_policy_clauses",
	mcp.WithDescription("Find the policy clauses most relevant to a query, using expanded search phrases."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
)
