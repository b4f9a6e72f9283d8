package orchestratornode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// ValidateAndSaveState stamps the completed turn and writes the checkpoint.
func ValidateAndSaveState(ctx context.Context, st *statex.TurnState, store statex.Store, now time.Time) error {
	if st == nil {
		return contractx.NewTurnError(contractx.KindValidation, "save_checkpoint", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation))
	}

	st.Touch(now)
	if err := st.Validate(); err != nil {
		return contractx.NewTurnError(contractx.KindCheckpoint, "save_checkpoint", fmt.Errorf("state validation failed: %w", err))
	}
	if err := store.Save(ctx, st); err != nil {
		return contractx.NewTurnError(contractx.KindCheckpoint, "save_checkpoint", err)
	}
	return nil
}
