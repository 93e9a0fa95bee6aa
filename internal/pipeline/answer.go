package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/history"
	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
	"github.com/ziadkadry99/claimwise/internal/retrieval"
)

// Fixed answers used when no generation happens.
const (
	NotFoundAnswer = "Not found in context: the policy documents do not cover this question."
	ApologyAnswer  = "Sorry, I couldn't process your query. Please try again."
)

const defaultContextTokens = 3000

const answerPromptTemplate = `You are an insurance policy assistant. Answer the question using ONLY the policy context below.
If the information isn't in the context, reply exactly "Not found in context". Quote the relevant clause text where possible.
%s
Policy context:
%s

Question: %s

Answer:`

// Answerer writes free-text answers grounded in retrieved clauses.
type Answerer struct {
	gen           llm.Generator
	counter       *llm.TokenCounter
	contextTokens int
	logger        *zap.Logger
}

// NewAnswerer returns an Answerer. Clauses are added to the prompt until
// contextTokens is reached (counted with counter; non-positive uses 3000).
func NewAnswerer(gen llm.Generator, counter *llm.TokenCounter, contextTokens int, logger *zap.Logger) *Answerer {
	if contextTokens <= 0 {
		contextTokens = defaultContextTokens
	}
	return &Answerer{gen: gen, counter: counter, contextTokens: contextTokens, logger: logging.OrNop(logger)}
}

// Answer never fails. With no clauses the generator is not called.
func (a *Answerer) Answer(ctx context.Context, question string, clauses []retrieval.Clause, prior []history.Message) string {
	if len(clauses) == 0 {
		return NotFoundAnswer
	}

	start := time.Now()
	defer metrics.ObserveStage("answer", start)

	if a.gen == nil {
		metrics.IncFallback("answer")
		return ApologyAnswer
	}

	raw, err := a.gen.Generate(ctx, a.prompt(question, clauses, prior))
	if err != nil {
		a.logger.Warn("answer generation failed, using fallback",
			zap.String("stage", "answer"),
			zap.Error(err))
		metrics.IncFallback("answer")
		return ApologyAnswer
	}
	return strings.TrimSpace(raw)
}

func (a *Answerer) prompt(question string, clauses []retrieval.Clause, prior []history.Message) string {
	var ctxText strings.Builder
	used := 0
	for i, c := range clauses {
		block := fmt.Sprintf("[%d] %s\n\n", i+1, strings.TrimSpace(c.Content))
		n := a.counter.Count(block)
		if i > 0 && used+n > a.contextTokens {
			break
		}
		ctxText.WriteString(block)
		used += n
	}

	var conv strings.Builder
	if len(prior) > 0 {
		conv.WriteString("\nEarlier conversation:\n")
		for _, m := range prior {
			fmt.Fprintf(&conv, "%s: %s\n", m.Role, m.Content)
		}
	}

	return fmt.Sprintf(answerPromptTemplate, conv.String(), strings.TrimSpace(ctxText.String()), question)
}
