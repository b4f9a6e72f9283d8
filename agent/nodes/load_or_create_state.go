package orchestratornode

import (
	"context"
	"errors"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// LoadOrCreateState reads the session checkpoint (or starts a fresh one) and
// prepares a private copy for the new turn.
func LoadOrCreateState(ctx context.Context, store statex.Store, req TurnRequest, now time.Time) (*statex.TurnState, error) {
	st, err := store.Load(ctx, req.SessionID)
	switch {
	case err == nil:
		st = st.Clone()
	case errors.Is(err, statex.ErrCheckpointNotFound):
		st = statex.NewTurnState(req.SessionID, req.UserID, now)
	default:
		return nil, contractx.NewTurnError(contractx.KindCheckpoint, "load_checkpoint", err)
	}

	if st.UserID == "" {
		st.UserID = req.UserID
	}
	st.BeginTurn(req.UserInput, now)
	return st, nil
}
