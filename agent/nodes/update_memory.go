package orchestratornode

import (
	"context"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// UpdateMemory is the terminal node of every turn.
func UpdateMemory(ctx context.Context, st *statex.TurnState, updater MemoryUpdater) (statex.Delta, error) {
	delta, err := updater.Update(ctx, st)
	if err != nil {
		return statex.Delta{}, contractx.NewTurnError(contractx.KindGeneration, NodeUpdateMemory, err)
	}
	delta.NextStep = statex.StringPtr(statex.StepEnd)
	delta.ActionsTaken = []string{NodeUpdateMemory}
	return delta, nil
}
