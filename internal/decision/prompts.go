package decision

const decisionPromptTemplate = `You are an insurance claims adjudicator. Decide the claim below using ONLY the policy clauses provided.

Policy clauses:
%s

Claim details:
- Age: %s
- Gender: %s
- Procedure: %s
- Location: %s
- Policy duration: %s
- Emergency: %s
- Original query: %s

Coverage rules:
%s

Return ONLY a JSON object with exactly these fields:

{
  "decision": "APPROVED" or "REJECTED",
  "amount": payable amount as a number, or null when rejected or unknown,
  "justification": "explanation quoting the exact clause text relied on",
  "risk_factors": ["concerns a reviewer should look at"],
  "coverage_status": "full", "partial" or "none"
}

JSON:`
