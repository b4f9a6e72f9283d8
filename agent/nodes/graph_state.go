package orchestratornode

import (
	"context"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// Graph node names. They double as the entries of actions_taken.
const (
	NodeClassifyIntent     = "classify_intent"
	NodeQAAgent            = "qa_agent"
	NodeSummarizationAgent = "summarization_agent"
	NodeCalculationAgent   = "calculation_agent"
	NodeUpdateMemory       = "update_memory"
)

// AgentNodes lists the response agent nodes, one of which runs per turn.
var AgentNodes = []string{NodeQAAgent, NodeSummarizationAgent, NodeCalculationAgent}

type Classifier interface {
	Classify(ctx context.Context, userInput string, history []contractx.Message) (contractx.Intent, error)
}

// Responder produces the turn's structured response. The node adds the
// actions_taken entry; a responder never does.
type Responder interface {
	Respond(ctx context.Context, st *statex.TurnState) (statex.Delta, error)
}

type MemoryUpdater interface {
	Update(ctx context.Context, st *statex.TurnState) (statex.Delta, error)
}

// Agents is everything the turn graph invokes.
type Agents struct {
	Classifier    Classifier
	QA            Responder
	Summarization Responder
	Calculation   Responder
	Memory        MemoryUpdater
}

func (a Agents) Responder(node string) (Responder, bool) {
	var r Responder
	switch node {
	case NodeQAAgent:
		r = a.QA
	case NodeSummarizationAgent:
		r = a.Summarization
	case NodeCalculationAgent:
		r = a.Calculation
	}
	return r, r != nil
}
