package state

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

// StepEnd is the terminal next_step written by the memory updater.
const StepEnd = "end"

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilTurnState   = errors.New("turn state is nil")
)

// TurnState is the per-session state threaded through the turn graph and
// persisted as the session checkpoint.
//
// Merge policy per field (see Fold):
//   - Messages, ActionsTaken: append
//   - ActiveDocuments: monotonic set union
//   - ToolsUsed: replaced by the delta
//   - everything else: last write wins
type TurnState struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`

	UserInput string              `json:"user_input"`
	Messages  []contractx.Message `json:"messages,omitempty"`

	Intent   *contractx.Intent `json:"intent,omitempty"`
	NextStep string            `json:"next_step,omitempty"`

	ConversationSummary string   `json:"conversation_summary,omitempty"`
	ActiveDocuments     []string `json:"active_documents,omitempty"`

	CurrentResponse *contractx.Response `json:"current_response,omitempty"`
	ToolsUsed       []string            `json:"tools_used,omitempty"`
	ActionsTaken    []string            `json:"actions_taken,omitempty"`

	Turn      int       `json:"turn"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Delta is what a node returns. Nil fields leave the state untouched.
type Delta struct {
	Intent              *contractx.Intent
	NextStep            *string
	ConversationSummary *string
	CurrentResponse     *contractx.Response

	// ToolsUsed replaces the turn's tool list when non-nil.
	ToolsUsed []string

	Messages        []contractx.Message
	ActionsTaken    []string
	ActiveDocuments []string
}

func NewTurnState(sessionID, userID string, now time.Time) *TurnState {
	return &TurnState{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

// BeginTurn resets the transient per-turn fields and records the new input.
// Session-scoped fields (messages, summary, active documents) carry over.
func (s *TurnState) BeginTurn(userInput string, now time.Time) {
	s.UserInput = userInput
	s.Intent = nil
	s.NextStep = ""
	s.CurrentResponse = nil
	s.ToolsUsed = nil
	s.ActionsTaken = nil
	s.Touch(now)
}

func (s *TurnState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Fold applies a node delta according to each field's merge policy.
func (s *TurnState) Fold(d Delta) {
	if d.Intent != nil {
		intent := *d.Intent
		s.Intent = &intent
	}
	if d.NextStep != nil {
		s.NextStep = *d.NextStep
	}
	if d.ConversationSummary != nil {
		s.ConversationSummary = *d.ConversationSummary
	}
	if d.CurrentResponse != nil {
		s.CurrentResponse = d.CurrentResponse
	}
	if d.ToolsUsed != nil {
		s.ToolsUsed = append([]string{}, d.ToolsUsed...)
	}
	if len(d.Messages) > 0 {
		s.Messages = append(s.Messages, d.Messages...)
	}
	if len(d.ActionsTaken) > 0 {
		s.ActionsTaken = append(s.ActionsTaken, d.ActionsTaken...)
	}
	if len(d.ActiveDocuments) > 0 {
		s.ActiveDocuments = UnionDocuments(s.ActiveDocuments, d.ActiveDocuments)
	}
}

// RecentMessages returns at most n trailing messages.
func (s *TurnState) RecentMessages(n int) []contractx.Message {
	if s == nil || n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Clone returns a deep copy so a failed turn never mutates a loaded checkpoint.
func (s *TurnState) Clone() *TurnState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]contractx.Message(nil), s.Messages...)
	out.ActiveDocuments = append([]string(nil), s.ActiveDocuments...)
	out.ToolsUsed = append([]string(nil), s.ToolsUsed...)
	out.ActionsTaken = append([]string(nil), s.ActionsTaken...)
	if s.Intent != nil {
		intent := *s.Intent
		out.Intent = &intent
	}
	if s.CurrentResponse != nil {
		resp := *s.CurrentResponse
		out.CurrentResponse = &resp
	}
	return &out
}

func (s *TurnState) Validate() error {
	if s == nil {
		return ErrNilTurnState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.CurrentResponse != nil {
		c := s.CurrentResponse.Confidence()
		if c < 0 || c > 1 {
			return errors.New("current response confidence out of range")
		}
	}
	return nil
}

// UnionDocuments returns prior followed by the ids of next not already present.
func UnionDocuments(prior, next []string) []string {
	seen := make(map[string]struct{}, len(prior)+len(next))
	out := make([]string, 0, len(prior)+len(next))
	for _, group := range [][]string{prior, next} {
		for _, id := range group {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func StringPtr(v string) *string {
	return &v
}
