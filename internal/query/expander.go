package query

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/llm"
	"github.com/ziadkadry99/claimwise/internal/logging"
	"github.com/ziadkadry99/claimwise/internal/metrics"
)

// maxGeneratedPhrases caps how many generated phrases are kept.
const maxGeneratedPhrases = 3

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]+|\d+[.)]|\(\d+\))\s*`)

// Expander broadens a StructuredQuery into extra search phrases.
type Expander struct {
	gen    llm.Generator
	logger *zap.Logger
}

// NewExpander returns an Expander backed by gen.
func NewExpander(gen llm.Generator, logger *zap.Logger) *Expander {
	return &Expander{gen: gen, logger: logging.OrNop(logger)}
}

// Expand returns the query keywords followed by any new generated
// phrases, without duplicates. The result is never empty and always
// contains every keyword.
func (x *Expander) Expand(ctx context.Context, sq StructuredQuery) []string {
	start := time.Now()
	defer metrics.ObserveStage("expansion", start)

	base := dedupe(sq.Keywords)
	if len(base) == 0 {
		base = []string{sq.OriginalQuery}
	}

	phrases, err := x.generate(ctx, sq)
	if err != nil {
		x.logger.Warn("query expansion failed, using keywords",
			zap.String("stage", "expansion"),
			zap.Error(err))
		metrics.IncFallback("expansion")
		return base
	}
	return dedupe(append(append([]string{}, base...), phrases...))
}

func (x *Expander) generate(ctx context.Context, sq StructuredQuery) ([]string, error) {
	if x.gen == nil {
		return nil, fmt.Errorf("no generator configured")
	}
	record, err := json.MarshalIndent(sq, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal structured query: %w", err)
	}
	raw, err := x.gen.Generate(ctx, fmt.Sprintf(expansionPromptTemplate, sq.OriginalQuery, record))
	if err != nil {
		return nil, err
	}
	phrases := parsePhrases(raw)
	if len(phrases) > maxGeneratedPhrases {
		phrases = phrases[:maxGeneratedPhrases]
	}
	return phrases, nil
}

// parsePhrases accepts {"phrases": [...]}, a bare JSON array, or one
// phrase per line with bullets or numbering.
func parsePhrases(raw string) []string {
	if obj, err := llm.ExtractJSONObject(raw); err == nil {
		if p := gjson.Get(obj, "phrases"); p.IsArray() {
			return coerceStrings(p)
		}
	}
	if arr, err := llm.ExtractJSONArray(raw); err == nil {
		return coerceStrings(gjson.Parse(arr))
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		line = strings.TrimSpace(strings.Trim(line, "\"'"))
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}
