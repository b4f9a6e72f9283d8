package responder

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// Summarization condenses the documents it read during the turn.
type Summarization struct {
	base
}

func NewSummarization(gen contractx.Generator, prompts *promptx.Set, tools Tools, cfg Config, opts ...Option) *Summarization {
	return &Summarization{base: newBase(contractx.AgentTypeSummarization, contractx.IntentSummarization, gen, prompts, tools, cfg, opts)}
}

func (a *Summarization) Respond(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
	reqs, err := a.plan(ctx, st)
	if err != nil {
		return statex.Delta{}, err
	}
	outcome := &actOutcome{}
	a.act(ctx, st, reqs, outcome)

	var out contractx.SummarizationOutput
	if err := a.respond(ctx, st, contractx.SchemaSummarization, outcome, &out); err != nil {
		return statex.Delta{}, err
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return statex.Delta{}, fmt.Errorf("%w: summary is empty", contractx.ErrSchemaViolation)
	}

	sources := filterSources(out.Sources, outcome.read)
	original := 0
	for _, id := range sources {
		original += len(outcome.texts[id])
	}
	keyPoints := make([]string, 0, len(out.KeyPoints))
	for _, p := range out.KeyPoints {
		if p = strings.TrimSpace(p); p != "" {
			keyPoints = append(keyPoints, p)
		}
	}

	now := a.now().UTC()
	resp := &contractx.Response{
		Kind:     contractx.ResponseSummarization,
		Degraded: outcome.degraded(),
		Summary: &contractx.SummarizationResponse{
			OriginalLength: original,
			Summary:        withFailureNotes(summary, outcome),
			KeyPoints:      keyPoints,
			Sources:        sources,
			Confidence:     confidence(out.Confidence, outcome.degraded()),
			Timestamp:      now,
		},
	}
	return a.finish(st, resp, outcome, now), nil
}
