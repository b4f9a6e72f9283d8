package responder

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// QA answers questions about documents it read during the turn.
type QA struct {
	base
}

func NewQA(gen contractx.Generator, prompts *promptx.Set, tools Tools, cfg Config, opts ...Option) *QA {
	return &QA{base: newBase(contractx.AgentTypeQA, contractx.IntentQA, gen, prompts, tools, cfg, opts)}
}

func (a *QA) Respond(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
	reqs, err := a.plan(ctx, st)
	if err != nil {
		return statex.Delta{}, err
	}
	outcome := &actOutcome{}
	a.act(ctx, st, reqs, outcome)

	var out contractx.AnswerOutput
	if err := a.respond(ctx, st, contractx.SchemaAnswer, outcome, &out); err != nil {
		return statex.Delta{}, err
	}
	answer := strings.TrimSpace(out.Answer)
	if answer == "" {
		return statex.Delta{}, fmt.Errorf("%w: answer is empty", contractx.ErrSchemaViolation)
	}

	now := a.now().UTC()
	resp := &contractx.Response{
		Kind:     contractx.ResponseAnswer,
		Degraded: outcome.degraded(),
		Answer: &contractx.AnswerResponse{
			Question:   st.UserInput,
			Answer:     withFailureNotes(answer, outcome),
			Sources:    filterSources(out.Sources, outcome.read),
			Confidence: confidence(out.Confidence, outcome.degraded()),
			Timestamp:  now,
		},
	}
	return a.finish(st, resp, outcome, now), nil
}
