package responder

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

// Calculation reads the selected documents, drafts an expression from their
// contents and reports the calculator's result.
type Calculation struct {
	base
}

func NewCalculation(gen contractx.Generator, prompts *promptx.Set, tools Tools, cfg Config, opts ...Option) *Calculation {
	return &Calculation{base: newBase(contractx.AgentTypeCalculation, contractx.IntentCalculation, gen, prompts, tools, cfg, opts)}
}

func (a *Calculation) Respond(ctx context.Context, st *statex.TurnState) (statex.Delta, error) {
	ids, err := a.selectDocuments(ctx, st)
	if err != nil {
		return statex.Delta{}, err
	}
	outcome := &actOutcome{}
	if len(ids) == 0 {
		return a.degraded(st, outcome, "", "I could not tell which document holds the numbers for this calculation. Please mention the document id."), nil
	}

	for _, id := range ids {
		a.lookup(ctx, st, id, outcome)
	}
	if len(outcome.read) == 0 {
		return a.degraded(st, outcome, "", fmt.Sprintf(
			"I could not read the documents needed for this calculation (%s), so nothing was computed.",
			strings.Join(failureNotes(outcome), "; "),
		)), nil
	}

	draft, err := a.draft(ctx, st, outcome)
	if err != nil {
		return statex.Delta{}, err
	}
	expression := strings.TrimSpace(draft.Expression)

	res := a.tools.Execute(toolx.WithSession(ctx, st.SessionID), contractx.ToolRequest{
		Tool: toolx.ToolMathEvaluate,
		Args: map[string]any{"expression": expression},
	})
	outcome.add(res)
	if res.Failed() {
		return a.degraded(st, outcome, expression, fmt.Sprintf(
			"I could not evaluate the expression %q: %s.", expression, res.Error,
		)), nil
	}
	evaluated, ok := res.Result.(toolx.MathEvaluateOutput)
	if !ok {
		return statex.Delta{}, fmt.Errorf("%w: unexpected calculator result %T", contractx.ErrValidation, res.Result)
	}

	units := strings.TrimSpace(draft.Units)
	explanation := strings.TrimSpace(draft.Explanation)
	result := fmt.Sprintf("%s = %s", expression, formatNumber(evaluated.Result))
	if units != "" {
		result += " " + units
	}
	if explanation == "" {
		explanation = "Result: " + result
	} else {
		explanation += "\n\nResult: " + result
	}

	now := a.now().UTC()
	resp := &contractx.Response{
		Kind:     contractx.ResponseCalculation,
		Degraded: outcome.degraded(),
		Calculation: &contractx.CalculationResponse{
			Expression:  expression,
			Result:      evaluated.Result,
			Explanation: withFailureNotes(explanation, outcome),
			Units:       units,
			Sources:     append([]string{}, outcome.read...),
			Confidence:  confidence(draft.Confidence, outcome.degraded()),
			Timestamp:   now,
		},
	}
	return a.finish(st, resp, outcome, now), nil
}

// selectDocuments is the lookup-only plan step.
func (a *Calculation) selectDocuments(ctx context.Context, st *statex.TurnState) ([]string, error) {
	msgs, err := a.prompt.Render(ctx, promptx.PhaseSelect, a.history(st), a.requestPayload(st))
	if err != nil {
		return nil, err
	}
	var out contractx.DocumentSelectionOutput
	if err := a.gen.Generate(ctx, contractx.GenerationRequest{Schema: contractx.SchemaDocumentSelection, Messages: msgs}, &out); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out.DocumentIDs))
	for _, id := range out.DocumentIDs {
		if id = strings.TrimSpace(id); id != "" && !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) > a.cfg.MaxToolCalls {
		log.Warn().Int("selected", len(ids)).Int("max", a.cfg.MaxToolCalls).Msg("document selection truncated")
		ids = ids[:a.cfg.MaxToolCalls]
	}
	return ids, nil
}

func (a *Calculation) draft(ctx context.Context, st *statex.TurnState, outcome *actOutcome) (contractx.CalculationDraftOutput, error) {
	docs := make([]map[string]string, 0, len(outcome.read))
	for _, id := range outcome.read {
		docs = append(docs, map[string]string{"document_id": id, "text": outcome.texts[id]})
	}
	payload := map[string]any{
		"user_request": st.UserInput,
		"documents":    docs,
	}

	msgs, err := a.prompt.Render(ctx, promptx.PhaseDraft, a.history(st), payload)
	if err != nil {
		return contractx.CalculationDraftOutput{}, err
	}
	var out contractx.CalculationDraftOutput
	if err := a.gen.Generate(ctx, contractx.GenerationRequest{Schema: contractx.SchemaCalculationDraft, Messages: msgs}, &out); err != nil {
		return contractx.CalculationDraftOutput{}, err
	}
	return out, nil
}

func (a *Calculation) degraded(st *statex.TurnState, outcome *actOutcome, expression, explanation string) statex.Delta {
	now := a.now().UTC()
	resp := &contractx.Response{
		Kind:     contractx.ResponseCalculation,
		Degraded: true,
		Calculation: &contractx.CalculationResponse{
			Expression:  expression,
			Explanation: explanation,
			Sources:     append([]string{}, outcome.read...),
			Confidence:  contractx.DegradedScore,
			Timestamp:   now,
		},
	}
	return a.finish(st, resp, outcome, now)
}

// formatNumber trims float noise such as 294.00000000000006.
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}
