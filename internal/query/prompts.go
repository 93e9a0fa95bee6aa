package query

const extractionPromptTemplate = `You analyze health insurance queries. Extract structured information from the query below.

Return ONLY a JSON object with exactly these fields:

{
  "age": integer or null if not mentioned,
  "gender": "M", "F", or null if not mentioned,
  "procedure": "medical procedure or treatment" or null,
  "location": "city or state" or null,
  "policy_duration_months": integer age of the policy in months or null,
  "query_type": one of "coverage", "exclusion", "claim", "premium", "general",
  "is_emergency": true if the treatment is an emergency or follows an accident, otherwise false,
  "keywords": ["important terms for finding policy clauses"]
}

Query: %s

JSON:`

const expansionPromptTemplate = `Given this structured health insurance query, write 2-3 alternative search phrases that would find the relevant policy clauses.

Original query: %s
Structured data:
%s

Focus the phrases on:
1. Policy coverage terms
2. Medical procedure terminology
3. Exclusion clauses

Return ONLY a JSON object of the form {"phrases": ["...", "..."]}.`
