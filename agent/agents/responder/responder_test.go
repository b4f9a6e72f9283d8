package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

var fixedNow = time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

// scriptedGenerator replies with a canned JSON document per schema name.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]string
	calls   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, req contractx.GenerationRequest, out any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req.Schema.Name)
	reply, ok := g.replies[req.Schema.Name]
	if !ok {
		return fmt.Errorf("%w: no reply scripted for %s", contractx.ErrModelInvoke, req.Schema.Name)
	}
	if err := json.Unmarshal([]byte(reply), out); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}

func (g *scriptedGenerator) called(schema string) bool {
	for _, c := range g.calls {
		if c == schema {
			return true
		}
	}
	return false
}

func testTools(t *testing.T) *toolx.Registry {
	t.Helper()
	corpus, err := toolx.NewCorpus(
		toolx.Document{ID: "P1", Title: "Policy P1", Type: "policy", Content: "Deductible: $500 per claim."},
		toolx.Document{ID: "D7", Title: "Quarterly report", Type: "report", Content: "Revenue grew 12% on strong renewals."},
		toolx.Document{ID: "D2", Title: "Claim D2", Type: "claim", Content: "Claim amount: $2,000", Metadata: map[string]any{"amount": 2000}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return toolx.NewRegistry(corpus, toolx.WithClock(func() time.Time { return fixedNow }))
}

func turnState(input string, intent contractx.IntentType) *statex.TurnState {
	st := statex.NewTurnState("s-1", "u-1", fixedNow)
	st.BeginTurn(input, fixedNow)
	st.Intent = &contractx.Intent{Type: intent, Confidence: 0.9}
	return st
}

func clock() Option {
	return WithClock(func() time.Time { return fixedNow })
}

func TestQAAnswersFromLookup(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan":       `{"tool_calls":[{"tool":"document.lookup","args":{"document_id":"P1"}}],"reasoning":"need P1"}`,
		"answer_response": `{"answer":"The deductible is $500 per claim.","sources":["p1","X9"],"confidence":0.85}`,
	}}
	tools := testTools(t)
	agent := NewQA(gen, nil, tools, Config{}, clock())

	st := turnState("What is the deductible in policy P1?", contractx.IntentQA)
	delta, err := agent.Respond(context.Background(), st)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	resp := delta.CurrentResponse
	if resp.Kind != contractx.ResponseAnswer || resp.Answer.Question != st.UserInput {
		t.Fatalf("response = %+v", resp)
	}
	if got := resp.Sources(); len(got) != 1 || got[0] != "P1" {
		t.Fatalf("sources = %v, want [P1]", got)
	}
	if resp.Confidence() != 0.85 || !resp.Answer.Timestamp.Equal(fixedNow) {
		t.Fatalf("confidence/timestamp = %v/%v", resp.Confidence(), resp.Answer.Timestamp)
	}
	if len(delta.ToolsUsed) != 1 || delta.ToolsUsed[0] != toolx.ToolDocumentLookup {
		t.Fatalf("tools used = %v", delta.ToolsUsed)
	}
	if len(delta.Messages) != 2 || delta.Messages[0].Role != contractx.RoleUser || delta.Messages[1].Content != resp.Text() {
		t.Fatalf("messages = %+v", delta.Messages)
	}
	if delta.Messages[0].Intent != contractx.IntentQA {
		t.Fatalf("message intent = %q", delta.Messages[0].Intent)
	}
	if len(delta.ActionsTaken) != 0 {
		t.Fatalf("agent must not write actions_taken: %v", delta.ActionsTaken)
	}
	if audit := tools.SessionAudit("s-1"); len(audit) != 1 {
		t.Fatalf("session audit = %+v", audit)
	}
}

func TestQADegradesWhenNothingWasRead(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan":       `{"tool_calls":[{"tool":"document.lookup","args":{"document_id":"D99"}}],"reasoning":""}`,
		"answer_response": `{"answer":"I could not find document D99.","sources":["D99"],"confidence":0.8}`,
	}}
	delta, err := NewQA(gen, nil, testTools(t), Config{}, clock()).Respond(context.Background(), turnState("What does D99 say?", contractx.IntentQA))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	resp := delta.CurrentResponse
	if !resp.Degraded || resp.Confidence() > contractx.DegradedScore {
		t.Fatalf("degraded = %v confidence = %v", resp.Degraded, resp.Confidence())
	}
	if srcs := resp.Sources(); srcs == nil || len(srcs) != 0 {
		t.Fatalf("sources = %#v, want empty", srcs)
	}
}

func TestQAWithoutToolsKeepsConfidence(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan":       `{"tool_calls":[],"reasoning":"greeting"}`,
		"answer_response": `{"answer":"Hello! Ask me about your documents.","sources":[],"confidence":0.7}`,
	}}
	delta, err := NewQA(gen, nil, testTools(t), Config{}, clock()).Respond(context.Background(), turnState("hi", contractx.IntentUnknown))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if delta.CurrentResponse.Confidence() != 0.7 || delta.ToolsUsed == nil || len(delta.ToolsUsed) != 0 {
		t.Fatalf("delta = %+v", delta)
	}
}

func TestPlanRejectsUnboundTool(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[{"tool":"math.evaluate","args":{"expression":"1+1"}}],"reasoning":""}`,
	}}
	_, err := NewQA(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("1+1?", contractx.IntentQA))
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("Respond() error = %v, want ErrSchemaViolation", err)
	}
}

func TestPlanTruncatesToMaxToolCalls(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[
			{"tool":"document.lookup","args":{"document_id":"P1"}},
			{"tool":"document.lookup","args":{"document_id":"D7"}},
			{"tool":"document.lookup","args":{"document_id":"D2"}}],"reasoning":""}`,
		"answer_response": `{"answer":"ok","sources":[],"confidence":0.9}`,
	}}
	tools := testTools(t)
	delta, err := NewQA(gen, nil, tools, Config{MaxToolCalls: 2}).Respond(context.Background(), turnState("compare", contractx.IntentQA))
	if err != nil {
		t.Fatal(err)
	}
	if got := delta.CurrentResponse.Sources(); len(got) != 2 || got[0] != "P1" || got[1] != "D7" {
		t.Fatalf("sources = %v", got)
	}
	if len(tools.Audit()) != 2 {
		t.Fatalf("audit = %d entries, want 2", len(tools.Audit()))
	}
}

func TestToolsUsedRecordsEveryInvocation(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[
			{"tool":"document.lookup","args":{"document_id":"P1"}},
			{"tool":"document.statistics","args":{}},
			{"tool":"document.lookup","args":{"document_id":"D7"}}],"reasoning":""}`,
		"answer_response": `{"answer":"ok","sources":["P1","D7"],"confidence":0.9}`,
	}}
	delta, err := NewQA(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("compare P1 and D7", contractx.IntentQA))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{toolx.ToolDocumentLookup, toolx.ToolDocumentStatistics, toolx.ToolDocumentLookup}
	if len(delta.ToolsUsed) != len(want) {
		t.Fatalf("tools used = %v, want %v", delta.ToolsUsed, want)
	}
	for i := range want {
		if delta.ToolsUsed[i] != want[i] {
			t.Fatalf("tools used = %v, want %v", delta.ToolsUsed, want)
		}
	}
	if delta.CurrentResponse.Degraded {
		t.Fatal("response without tool failures must not be degraded")
	}
}

func TestQAPartialLookupFailureDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[
			{"tool":"document.lookup","args":{"document_id":"D7"}},
			{"tool":"document.lookup","args":{"document_id":"D99"}}],"reasoning":""}`,
		"answer_response": `{"answer":"Revenue grew 12%.","sources":["D7","D99"],"confidence":0.9}`,
	}}
	delta, err := NewQA(gen, nil, testTools(t), Config{}, clock()).Respond(context.Background(), turnState("Compare D7 with D99", contractx.IntentQA))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	resp := delta.CurrentResponse
	if !resp.Degraded || resp.Confidence() != contractx.DegradedScore {
		t.Fatalf("degraded = %v confidence = %v", resp.Degraded, resp.Confidence())
	}
	if !strings.Contains(resp.Answer.Answer, "Not read") || !strings.Contains(resp.Answer.Answer, "D99") {
		t.Fatalf("answer = %q, want failure note", resp.Answer.Answer)
	}
	if got := resp.Sources(); len(got) != 1 || got[0] != "D7" {
		t.Fatalf("sources = %v, want [D7]", got)
	}
}

func TestSummarizationPartialLookupFailureDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[
			{"tool":"document.lookup","args":{"document_id":"D7"}},
			{"tool":"document.lookup","args":{"document_id":"D99"}}],"reasoning":""}`,
		"summarization_response": `{"summary":"Revenue grew 12%.","key_points":["growth"],"sources":["D7"],"confidence":0.9}`,
	}}
	delta, err := NewSummarization(gen, nil, testTools(t), Config{}, clock()).Respond(context.Background(), turnState("Summarize D7 and D99", contractx.IntentSummarization))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	s := delta.CurrentResponse.Summary
	if !delta.CurrentResponse.Degraded || s.Confidence != contractx.DegradedScore {
		t.Fatalf("summary = %+v", s)
	}
	if !strings.HasPrefix(s.Summary, "Revenue grew 12%.") || !strings.Contains(s.Summary, "D99") {
		t.Fatalf("summary text = %q, want failure note", s.Summary)
	}
}

func TestSearchHitsCountAsRead(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan":       `{"tool_calls":[{"tool":"document.search","args":{"comparison":"over","amount":1000}}],"reasoning":""}`,
		"answer_response": `{"answer":"Claim D2 is over $1,000.","sources":["D2"],"confidence":0.8}`,
	}}
	tools := testTools(t)
	delta, err := NewQA(gen, nil, tools, Config{}).Respond(context.Background(), turnState("Which documents are over $1,000?", contractx.IntentQA))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if got := delta.CurrentResponse.Sources(); len(got) != 1 || got[0] != "D2" {
		t.Fatalf("sources = %v, want [D2]", got)
	}
	if audit := tools.Audit(); len(audit) != 1 || audit[0].Tool != toolx.ToolDocumentSearch {
		t.Fatalf("audit = %+v", audit)
	}
}

func TestGenerationFailureIsReturned(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan": `{"tool_calls":[],"reasoning":""}`,
	}}
	_, err := NewSummarization(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("Summarize D7", contractx.IntentSummarization))
	if !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("Respond() error = %v, want ErrModelInvoke", err)
	}

	gen.replies["answer_response"] = `{"answer":"  ","sources":[],"confidence":1}`
	_, err = NewQA(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("q", contractx.IntentQA))
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("empty answer error = %v, want ErrSchemaViolation", err)
	}
}

func TestSummarizationSourcesFallBackToRead(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"tool_plan":              `{"tool_calls":[{"tool":"document.lookup","args":{"document_id":"D7"}}],"reasoning":""}`,
		"summarization_response": `{"summary":"Revenue grew 12%.","key_points":["growth"," ",""],"sources":[],"confidence":0.9}`,
	}}
	delta, err := NewSummarization(gen, nil, testTools(t), Config{}, clock()).Respond(context.Background(), turnState("Summarize document D7", contractx.IntentSummarization))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	s := delta.CurrentResponse.Summary
	if len(s.Sources) != 1 || s.Sources[0] != "D7" {
		t.Fatalf("sources = %v, want [D7]", s.Sources)
	}
	if s.OriginalLength == 0 || len(s.KeyPoints) != 1 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestCalculationUsesCalculatorResult(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"document_selection": `{"document_ids":["D2"],"reasoning":"claim amount"}`,
		"calculation_draft":  `{"expression":"2000 * 12 / 100","explanation":"12% of the $2,000 claim amount.","units":"USD","confidence":0.95}`,
	}}
	tools := testTools(t)
	delta, err := NewCalculation(gen, nil, tools, Config{}, clock()).Respond(context.Background(), turnState("What is 12% of the claim amount in D2?", contractx.IntentCalculation))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	c := delta.CurrentResponse.Calculation
	if c.Result != 240 || c.Expression != "2000 * 12 / 100" || c.Units != "USD" {
		t.Fatalf("calculation = %+v", c)
	}
	if !strings.Contains(c.Explanation, "240") || c.Confidence != 0.95 {
		t.Fatalf("explanation/confidence = %q/%v", c.Explanation, c.Confidence)
	}
	if len(c.Sources) != 1 || c.Sources[0] != "D2" {
		t.Fatalf("sources = %v", c.Sources)
	}
	if len(delta.ToolsUsed) != 2 || delta.ToolsUsed[0] != toolx.ToolDocumentLookup || delta.ToolsUsed[1] != toolx.ToolMathEvaluate {
		t.Fatalf("tools used = %v", delta.ToolsUsed)
	}

	audit := tools.Audit()
	if len(audit) != 2 || audit[0].Tool != toolx.ToolDocumentLookup || audit[1].Tool != toolx.ToolMathEvaluate {
		t.Fatalf("lookup must precede calculation: %+v", audit)
	}
}

func TestCalculationMissingDocumentDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"document_selection": `{"document_ids":["D99"],"reasoning":""}`,
	}}
	tools := testTools(t)
	delta, err := NewCalculation(gen, nil, tools, Config{}, clock()).Respond(context.Background(), turnState("What is 10% of D99?", contractx.IntentCalculation))
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	resp := delta.CurrentResponse
	if !resp.Degraded || resp.Confidence() != contractx.DegradedScore {
		t.Fatalf("degraded = %v confidence = %v", resp.Degraded, resp.Confidence())
	}
	if !strings.Contains(resp.Text(), "D99") {
		t.Fatalf("explanation = %q", resp.Text())
	}
	if gen.called("calculation_draft") {
		t.Fatal("draft must not run when no document was read")
	}
	for _, e := range tools.Audit() {
		if e.Tool == toolx.ToolMathEvaluate {
			t.Fatal("calculator must not run when no document was read")
		}
	}
	if len(delta.ToolsUsed) != 1 || delta.ToolsUsed[0] != toolx.ToolDocumentLookup {
		t.Fatalf("tools used = %v", delta.ToolsUsed)
	}
}

func TestCalculationNoSelectionDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"document_selection": `{"document_ids":[" "],"reasoning":"unclear"}`,
	}}
	delta, err := NewCalculation(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("What is 10% of it?", contractx.IntentCalculation))
	if err != nil {
		t.Fatal(err)
	}
	if !delta.CurrentResponse.Degraded || delta.CurrentResponse.Confidence() != contractx.DegradedScore || delta.ToolsUsed == nil || len(delta.ToolsUsed) != 0 {
		t.Fatalf("delta = %+v", delta)
	}
}

func TestCalculationEvaluationFailureDegrades(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"document_selection": `{"document_ids":["D2"],"reasoning":""}`,
		"calculation_draft":  `{"expression":"2000 / (1 - 1)","explanation":"","units":"","confidence":0.9}`,
	}}
	delta, err := NewCalculation(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("Divide D2 by nothing", contractx.IntentCalculation))
	if err != nil {
		t.Fatal(err)
	}
	c := delta.CurrentResponse.Calculation
	if c.Confidence != contractx.DegradedScore || c.Expression != "2000 / (1 - 1)" || c.Result != 0 {
		t.Fatalf("calculation = %+v", c)
	}
	if len(c.Sources) != 1 || c.Sources[0] != "D2" {
		t.Fatalf("sources = %v", c.Sources)
	}
}

func TestCalculationPartialReadIsDegraded(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: map[string]string{
		"document_selection": `{"document_ids":["D2","D99"],"reasoning":""}`,
		"calculation_draft":  `{"expression":"2000 + 0","explanation":"Sum.","units":"USD","confidence":0.9}`,
	}}
	delta, err := NewCalculation(gen, nil, testTools(t), Config{}).Respond(context.Background(), turnState("Add D2 and D99", contractx.IntentCalculation))
	if err != nil {
		t.Fatal(err)
	}
	c := delta.CurrentResponse.Calculation
	if c.Result != 2000 || c.Confidence != contractx.DegradedScore || !strings.Contains(c.Explanation, "Not read") {
		t.Fatalf("calculation = %+v", c)
	}
	if !delta.CurrentResponse.Degraded {
		t.Fatal("partial read must mark the response degraded")
	}
}

func TestFilterSources(t *testing.T) {
	t.Parallel()

	read := []string{"INV-001", "CON-001"}
	if got := filterSources([]string{"inv-001", "INV-001", "X"}, read); len(got) != 1 || got[0] != "INV-001" {
		t.Fatalf("filterSources() = %v", got)
	}
	if got := filterSources(nil, read); len(got) != 2 {
		t.Fatalf("filterSources(nil) = %v", got)
	}
	if got := filterSources([]string{"X"}, nil); got == nil || len(got) != 0 {
		t.Fatalf("filterSources(X, nil) = %#v", got)
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := map[float64]string{
		294.00000000000006: "294",
		2640:               "2640",
		0.125:              "0.125",
		-3.5:               "-3.5",
	}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Fatalf("formatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
