package orchestratornode

import (
	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

// Route maps an intent onto the agent node that handles it. Anything that is
// not a recognized task intent goes to the Q&A agent.
func Route(intent contractx.IntentType) string {
	switch intent {
	case contractx.IntentSummarization:
		return NodeSummarizationAgent
	case contractx.IntentCalculation:
		return NodeCalculationAgent
	default:
		return NodeQAAgent
	}
}

// RouteStep re-validates a stored next_step so the graph branch is total.
func RouteStep(step string) string {
	for _, node := range AgentNodes {
		if step == node {
			return step
		}
	}
	return NodeQAAgent
}
