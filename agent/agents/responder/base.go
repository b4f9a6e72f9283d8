package responder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

// Tools executes planned tool requests. Failures are reported inside the result.
type Tools interface {
	Execute(ctx context.Context, req contractx.ToolRequest) contractx.ToolResult
}

type Config struct {
	HistoryWindow int `envconfig:"HISTORY_WINDOW" default:"6"`
	MaxToolCalls  int `envconfig:"MAX_TOOL_CALLS" default:"5"`
}

func (c Config) withDefaults() Config {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	if c.MaxToolCalls <= 0 {
		c.MaxToolCalls = 5
	}
	return c
}

type Option func(*base)

func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

// base is the plan, act, respond pipeline shared by every response agent.
type base struct {
	agentType contractx.AgentType
	gen       contractx.Generator
	prompt    promptx.AgentPrompt
	tools     Tools
	cfg       Config
	now       func() time.Time
}

func newBase(agentType contractx.AgentType, intent contractx.IntentType, gen contractx.Generator, prompts *promptx.Set, tools Tools, cfg Config, opts []Option) base {
	if prompts == nil {
		prompts = promptx.LoadSet()
	}
	b := base{
		agentType: agentType,
		gen:       gen,
		prompt:    prompts.ForIntent(intent),
		tools:     tools,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}
	return b
}

// actOutcome is what running the planned tools produced.
type actOutcome struct {
	results []contractx.ToolResult
	// toolsUsed has one entry per invocation, in invocation order.
	toolsUsed []string
	// read holds the ids of documents returned by successful lookups or
	// searches, in order.
	read   []string
	texts  map[string]string
	failed int
}

func (o *actOutcome) add(res contractx.ToolResult) {
	o.results = append(o.results, res)
	o.toolsUsed = append(o.toolsUsed, res.Tool)
	if res.Failed() {
		o.failed++
		return
	}
	switch out := res.Result.(type) {
	case toolx.LookupOutput:
		o.markRead(out.DocumentID, out.Text, true)
	case toolx.SearchOutput:
		for _, m := range out.Matches {
			o.markRead(m.DocumentID, m.Preview, false)
		}
	}
}

// markRead records id as read. A full lookup text replaces a search preview.
func (o *actOutcome) markRead(id, text string, full bool) {
	if !contains(o.read, id) {
		o.read = append(o.read, id)
	}
	if o.texts == nil {
		o.texts = map[string]string{}
	}
	if _, seen := o.texts[id]; full || !seen {
		o.texts[id] = text
	}
}

// degraded reports whether any tool call failed this turn.
func (o *actOutcome) degraded() bool {
	return o.failed > 0
}

func (o *actOutcome) usedTools() []string {
	if o.toolsUsed == nil {
		return []string{}
	}
	return o.toolsUsed
}

func (b *base) requestPayload(st *statex.TurnState) map[string]any {
	return map[string]any{
		"user_request":         st.UserInput,
		"conversation_summary": st.ConversationSummary,
		"active_documents":     st.ActiveDocuments,
	}
}

func (b *base) history(st *statex.TurnState) []contractx.Message {
	return st.RecentMessages(b.cfg.HistoryWindow)
}

// plan asks the model which bound tools to call before responding.
func (b *base) plan(ctx context.Context, st *statex.TurnState) ([]contractx.ToolRequest, error) {
	infos := toolx.InfosForAgent(b.agentType)
	available := make([]map[string]string, 0, len(infos))
	for _, info := range infos {
		available = append(available, map[string]string{"name": info.Name, "description": info.Desc})
	}
	payload := b.requestPayload(st)
	payload["available_tools"] = available

	msgs, err := b.prompt.Render(ctx, promptx.PhasePlan, b.history(st), payload)
	if err != nil {
		return nil, err
	}
	var out contractx.ToolPlanOutput
	if err := b.gen.Generate(ctx, contractx.GenerationRequest{Schema: contractx.SchemaToolPlan, Messages: msgs}, &out); err != nil {
		return nil, err
	}

	reqs := make([]contractx.ToolRequest, 0, len(out.ToolCalls))
	for _, call := range out.ToolCalls {
		name := strings.TrimSpace(call.Tool)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}
		if !toolx.Bound(b.agentType, name) {
			return nil, fmt.Errorf("%w: tool=%s is not allowed for agent=%s", contractx.ErrSchemaViolation, name, b.agentType)
		}
		args := call.Args
		if args == nil {
			args = map[string]any{}
		}
		reqs = append(reqs, contractx.ToolRequest{Tool: name, Args: args})
	}
	if len(reqs) > b.cfg.MaxToolCalls {
		log.Warn().
			Str("agent", string(b.agentType)).
			Int("planned", len(reqs)).
			Int("max", b.cfg.MaxToolCalls).
			Msg("tool plan truncated")
		reqs = reqs[:b.cfg.MaxToolCalls]
	}
	return reqs, nil
}

// act runs requests in order. Tool failures stay in the outcome.
func (b *base) act(ctx context.Context, st *statex.TurnState, reqs []contractx.ToolRequest, outcome *actOutcome) {
	ctx = toolx.WithSession(ctx, st.SessionID)
	for _, req := range reqs {
		outcome.add(b.tools.Execute(ctx, req))
	}
}

func (b *base) lookup(ctx context.Context, st *statex.TurnState, idOrQuery string, outcome *actOutcome) contractx.ToolResult {
	res := b.tools.Execute(toolx.WithSession(ctx, st.SessionID), contractx.ToolRequest{
		Tool: toolx.ToolDocumentLookup,
		Args: map[string]any{"document_id": idOrQuery},
	})
	outcome.add(res)
	return res
}

// respond renders the respond phase over the tool results and decodes into out.
func (b *base) respond(ctx context.Context, st *statex.TurnState, schema contractx.Schema, outcome *actOutcome, out any) error {
	payload := b.requestPayload(st)
	payload["tool_results"] = outcome.results

	msgs, err := b.prompt.Render(ctx, promptx.PhaseRespond, b.history(st), payload)
	if err != nil {
		return err
	}
	return b.gen.Generate(ctx, contractx.GenerationRequest{Schema: schema, Messages: msgs}, out)
}

// finish builds the agent delta: response, tools used and the transcript pair.
func (b *base) finish(st *statex.TurnState, resp *contractx.Response, outcome *actOutcome, now time.Time) statex.Delta {
	intent := contractx.IntentType("")
	if st.Intent != nil {
		intent = st.Intent.Type
	}
	return statex.Delta{
		CurrentResponse: resp,
		ToolsUsed:       outcome.usedTools(),
		Messages: []contractx.Message{
			{Role: contractx.RoleUser, Content: st.UserInput, Intent: intent, At: now},
			{Role: contractx.RoleAssistant, Content: resp.Text(), Intent: intent, At: now},
		},
	}
}

// filterSources keeps the cited ids the turn actually read, falling back to
// everything read when the model cited none of them.
func filterSources(cited, read []string) []string {
	out := make([]string, 0, len(read))
	for _, id := range cited {
		for _, r := range read {
			if strings.EqualFold(strings.TrimSpace(id), r) && !contains(out, r) {
				out = append(out, r)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, read...)
	}
	return out
}

// confidence clamps the model's value and caps it when the turn was degraded.
func confidence(v float64, degraded bool) float64 {
	v = contractx.ClampConfidence(v)
	if degraded && v > contractx.DegradedScore {
		return contractx.DegradedScore
	}
	return v
}

// withFailureNotes appends the failed tool calls to text so the reply says
// what could not be read.
func withFailureNotes(text string, outcome *actOutcome) string {
	if notes := failureNotes(outcome); len(notes) > 0 {
		return text + "\n\nNot read: " + strings.Join(notes, "; ")
	}
	return text
}

func failureNotes(outcome *actOutcome) []string {
	var notes []string
	for _, res := range outcome.results {
		if res.Failed() {
			notes = append(notes, fmt.Sprintf("%s: %s", res.Tool, res.Error))
		}
	}
	return notes
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
