package orchestratornode

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

var testNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

type stubClassifier struct {
	intent contractx.Intent
	err    error
}

func (s stubClassifier) Classify(context.Context, string, []contractx.Message) (contractx.Intent, error) {
	return s.intent, s.err
}

type stubResponder struct {
	delta statex.Delta
	err   error
}

func (s stubResponder) Respond(context.Context, *statex.TurnState) (statex.Delta, error) {
	return s.delta, s.err
}

type stubMemory struct {
	delta statex.Delta
	err   error
}

func (s stubMemory) Update(context.Context, *statex.TurnState) (statex.Delta, error) {
	return s.delta, s.err
}

func answerDelta() statex.Delta {
	return statex.Delta{CurrentResponse: &contractx.Response{
		Kind:   contractx.ResponseAnswer,
		Answer: &contractx.AnswerResponse{Answer: "ok", Confidence: 0.9, Sources: []string{}},
	}}
}

func TestRouteIsTotal(t *testing.T) {
	t.Parallel()

	tests := map[contractx.IntentType]string{
		contractx.IntentQA:            NodeQAAgent,
		contractx.IntentSummarization: NodeSummarizationAgent,
		contractx.IntentCalculation:   NodeCalculationAgent,
		contractx.IntentUnknown:       NodeQAAgent,
		"":                            NodeQAAgent,
		"translate":                   NodeQAAgent,
	}
	for in, want := range tests {
		if got := Route(in); got != want {
			t.Fatalf("Route(%q) = %q, want %q", in, got, want)
		}
	}

	if got := RouteStep("bogus"); got != NodeQAAgent {
		t.Fatalf("RouteStep(bogus) = %q", got)
	}
	if got := RouteStep(NodeCalculationAgent); got != NodeCalculationAgent {
		t.Fatalf("RouteStep(calculation) = %q", got)
	}
}

func TestValidateRequest(t *testing.T) {
	t.Parallel()

	got, err := ValidateRequest(TurnRequest{SessionID: " s1 ", UserID: " u ", UserInput: "  hi  "})
	if err != nil {
		t.Fatalf("ValidateRequest() error = %v", err)
	}
	if got.SessionID != "s1" || got.UserID != "u" || got.UserInput != "hi" {
		t.Fatalf("ValidateRequest() = %+v", got)
	}

	_, err = ValidateRequest(TurnRequest{SessionID: " ", UserInput: "hi"})
	if !errors.Is(err, ErrInvalidSession) || contractx.KindOf(err) != contractx.KindValidation {
		t.Fatalf("empty session error = %v", err)
	}
	_, err = ValidateRequest(TurnRequest{SessionID: "s1", UserInput: "\n\t"})
	if !errors.Is(err, ErrInvalidMessage) || contractx.KindOf(err) != contractx.KindValidation {
		t.Fatalf("empty input error = %v", err)
	}
}

func TestLoadOrCreateState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := statex.NewMemoryStore()
	req := TurnRequest{SessionID: "s1", UserID: "u1", UserInput: "first"}

	st, err := LoadOrCreateState(ctx, store, req, testNow)
	if err != nil {
		t.Fatalf("LoadOrCreateState(new) error = %v", err)
	}
	if st.Turn != 0 || st.UserInput != "first" || !st.CreatedAt.Equal(testNow) {
		t.Fatalf("new state = %+v", st)
	}

	st.ActiveDocuments = []string{"D7"}
	st.ActionsTaken = []string{NodeClassifyIntent}
	st.Turn = 1
	if err := store.Save(ctx, st); err != nil {
		t.Fatal(err)
	}

	req.UserInput = "second"
	next, err := LoadOrCreateState(ctx, store, req, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("LoadOrCreateState(existing) error = %v", err)
	}
	if next.Turn != 1 || next.UserInput != "second" || len(next.ActionsTaken) != 0 {
		t.Fatalf("existing state = %+v", next)
	}
	if len(next.ActiveDocuments) != 1 || next.ActiveDocuments[0] != "D7" {
		t.Fatalf("active documents not carried over: %v", next.ActiveDocuments)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	_, err = LoadOrCreateState(ctx, store, req, testNow)
	if contractx.KindOf(err) != contractx.KindCheckpoint {
		t.Fatalf("closed store error = %v", err)
	}
}

func TestValidateAndSaveState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := statex.NewMemoryStore()
	st := statex.NewTurnState("s1", "u1", testNow)

	if err := ValidateAndSaveState(ctx, st, store, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("ValidateAndSaveState() error = %v", err)
	}
	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("UpdatedAt = %v", got.UpdatedAt)
	}

	if err := ValidateAndSaveState(ctx, nil, store, testNow); contractx.KindOf(err) != contractx.KindValidation {
		t.Fatalf("nil state error = %v", err)
	}
	if err := ValidateAndSaveState(ctx, statex.NewTurnState("", "", testNow), store, testNow); contractx.KindOf(err) != contractx.KindCheckpoint {
		t.Fatalf("invalid state error = %v", err)
	}
}

func TestClassifyIntent(t *testing.T) {
	t.Parallel()

	st := statex.NewTurnState("s1", "u1", testNow)
	st.BeginTurn("What is 15% of D2?", testNow)

	delta, err := ClassifyIntent(context.Background(), st, stubClassifier{intent: contractx.Intent{Type: contractx.IntentCalculation, Confidence: 0.9}})
	if err != nil {
		t.Fatalf("ClassifyIntent() error = %v", err)
	}
	if delta.Intent.Type != contractx.IntentCalculation || *delta.NextStep != NodeCalculationAgent {
		t.Fatalf("delta = %+v", delta)
	}
	if len(delta.ActionsTaken) != 1 || delta.ActionsTaken[0] != NodeClassifyIntent {
		t.Fatalf("actions = %v", delta.ActionsTaken)
	}

	_, err = ClassifyIntent(context.Background(), st, stubClassifier{err: contractx.ErrModelInvoke})
	if contractx.KindOf(err) != contractx.KindClassification || !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("classifier failure = %v", err)
	}
}

func TestDispatchAgent(t *testing.T) {
	t.Parallel()

	st := statex.NewTurnState("s1", "u1", testNow)
	agents := Agents{QA: stubResponder{delta: answerDelta()}}

	delta, err := DispatchAgent(context.Background(), st, NodeQAAgent, agents)
	if err != nil {
		t.Fatalf("DispatchAgent() error = %v", err)
	}
	if delta.ToolsUsed == nil || len(delta.ActionsTaken) != 1 || delta.ActionsTaken[0] != NodeQAAgent {
		t.Fatalf("delta = %+v", delta)
	}

	_, err = DispatchAgent(context.Background(), st, NodeCalculationAgent, agents)
	if contractx.KindOf(err) != contractx.KindGeneration {
		t.Fatalf("unbound agent error = %v", err)
	}

	agents.Summarization = stubResponder{}
	_, err = DispatchAgent(context.Background(), st, NodeSummarizationAgent, agents)
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("missing response error = %v", err)
	}

	agents.Summarization = stubResponder{err: contractx.ErrModelInvoke}
	_, err = DispatchAgent(context.Background(), st, NodeSummarizationAgent, agents)
	if contractx.KindOf(err) != contractx.KindGeneration || !errors.Is(err, contractx.ErrModelInvoke) {
		t.Fatalf("agent failure = %v", err)
	}
}

func TestUpdateMemory(t *testing.T) {
	t.Parallel()

	st := statex.NewTurnState("s1", "u1", testNow)
	delta, err := UpdateMemory(context.Background(), st, stubMemory{delta: statex.Delta{ConversationSummary: statex.StringPtr("sum")}})
	if err != nil {
		t.Fatalf("UpdateMemory() error = %v", err)
	}
	if *delta.NextStep != statex.StepEnd || delta.ActionsTaken[0] != NodeUpdateMemory {
		t.Fatalf("delta = %+v", delta)
	}

	_, err = UpdateMemory(context.Background(), st, stubMemory{err: contractx.ErrSchemaViolation})
	if contractx.KindOf(err) != contractx.KindGeneration {
		t.Fatalf("memory failure = %v", err)
	}
}

func TestFinalizeReply(t *testing.T) {
	t.Parallel()

	st := statex.NewTurnState("s1", "u1", testNow)
	if _, err := FinalizeReply(st); err == nil {
		t.Fatal("expected error without response")
	}
	st.Fold(answerDelta())
	reply, err := FinalizeReply(st)
	if err != nil || reply != "ok" {
		t.Fatalf("FinalizeReply() = %q, %v", reply, err)
	}
}
