package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// DispatchAgent runs the response agent bound to node.
func DispatchAgent(ctx context.Context, st *statex.TurnState, node string, agents Agents) (statex.Delta, error) {
	responder, ok := agents.Responder(node)
	if !ok {
		return statex.Delta{}, contractx.NewTurnError(contractx.KindGeneration, node, fmt.Errorf("%w: no agent bound to %s", contractx.ErrValidation, node))
	}

	delta, err := responder.Respond(ctx, st)
	if err != nil {
		return statex.Delta{}, contractx.NewTurnError(contractx.KindGeneration, node, err)
	}
	if delta.CurrentResponse == nil {
		return statex.Delta{}, contractx.NewTurnError(contractx.KindGeneration, node, fmt.Errorf("%w: agent returned no response", contractx.ErrSchemaViolation))
	}
	if delta.ToolsUsed == nil {
		delta.ToolsUsed = []string{}
	}
	delta.ActionsTaken = []string{node}
	return delta, nil
}
