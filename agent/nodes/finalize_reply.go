package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

// FinalizeReply checks that a finished turn carries a response and returns its text.
func FinalizeReply(st *statex.TurnState) (string, error) {
	if st == nil || st.CurrentResponse == nil {
		return "", contractx.NewTurnError(contractx.KindGeneration, NodeUpdateMemory, fmt.Errorf("%w: turn finished without a response", contractx.ErrValidation))
	}
	reply := strings.TrimSpace(st.CurrentResponse.Text())
	if reply == "" {
		return "", contractx.NewTurnError(contractx.KindGeneration, NodeUpdateMemory, fmt.Errorf("%w: response text is empty", contractx.ErrSchemaViolation))
	}
	return reply, nil
}
