package orchestratornode

import (
	"errors"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSession = statex.ErrInvalidSession
)

type TurnRequest struct {
	SessionID string
	UserID    string
	UserInput string
}

// ValidateRequest trims the request and rejects empty session ids or input.
func ValidateRequest(in TurnRequest) (TurnRequest, error) {
	out := TurnRequest{
		SessionID: strings.TrimSpace(in.SessionID),
		UserID:    strings.TrimSpace(in.UserID),
		UserInput: strings.TrimSpace(in.UserInput),
	}
	if out.SessionID == "" {
		return TurnRequest{}, contractx.NewTurnError(contractx.KindValidation, "", fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession))
	}
	if out.UserInput == "" {
		return TurnRequest{}, contractx.NewTurnError(contractx.KindValidation, "", fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage))
	}
	return out, nil
}
