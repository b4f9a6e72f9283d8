package prompt

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

//go:embed template/*.txt
var embedded embed.FS

// Phase selects the instruction appended to an agent's system prompt.
type Phase string

const (
	PhasePlan    Phase = "plan"
	PhaseRespond Phase = "respond"
	PhaseSelect  Phase = "select"
	PhaseDraft   Phase = "draft"
)

var templateFiles = []string{
	"classification", "qa", "summarization", "calculation",
	"plan", "respond", "select", "draft", "memory",
}

// Set holds every prompt the turn engine renders. Templates use eino FString
// syntax; literal braces are not allowed in template text.
type Set struct {
	raw map[string]string
}

// LoadSet returns the embedded prompt set.
func LoadSet() *Set {
	set, err := LoadSetFS(embedded, "template")
	if err != nil {
		panic(err)
	}
	return set
}

// LoadSetFS reads <dir>/<name>.txt for every template name from fsys.
func LoadSetFS(fsys fs.FS, dir string) (*Set, error) {
	set := &Set{raw: make(map[string]string, len(templateFiles))}
	for _, name := range templateFiles {
		data, err := fs.ReadFile(fsys, strings.TrimSuffix(dir, "/")+"/"+name+".txt")
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, name)
			}
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return nil, fmt.Errorf("%w: %s is empty", contractx.ErrPromptMissing, name)
		}
		set.raw[name] = text
	}
	return set, nil
}

// Classification renders the intent prompt over the input and a window of history.
func (s *Set) Classification(ctx context.Context, userInput string, history []contractx.Message) ([]*schema.Message, error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.UserMessage(s.raw["classification"]),
	)
	msgs, err := template.Format(ctx, map[string]any{
		"user_input":           userInput,
		"conversation_history": FormatHistory(history),
	})
	if err != nil {
		return nil, fmt.Errorf("render classification prompt: %w", err)
	}
	return msgs, nil
}

// AgentPrompt is the prompt family of one response agent.
type AgentPrompt struct {
	Intent contractx.IntentType
	system string
	phases map[Phase]string
}

// ForIntent returns the agent prompt for an intent; anything unrecognized gets the Q&A prompt.
func (s *Set) ForIntent(intent contractx.IntentType) AgentPrompt {
	name := string(intent)
	switch intent {
	case contractx.IntentQA, contractx.IntentSummarization, contractx.IntentCalculation:
	default:
		intent, name = contractx.IntentQA, string(contractx.IntentQA)
	}
	return AgentPrompt{
		Intent: intent,
		system: s.raw[name],
		phases: map[Phase]string{
			PhasePlan:    s.raw["plan"],
			PhaseRespond: s.raw["respond"],
			PhaseSelect:  s.raw["select"],
			PhaseDraft:   s.raw["draft"],
		},
	}
}

// Render builds system + history + a JSON payload as the user turn.
func (p AgentPrompt) Render(ctx context.Context, phase Phase, history []contractx.Message, payload any) ([]*schema.Message, error) {
	instruction, ok := p.phases[phase]
	if !ok || p.system == "" {
		return nil, fmt.Errorf("%w: %s/%s", contractx.ErrPromptMissing, p.Intent, phase)
	}
	return render(ctx, p.system+"\n\n"+instruction, history, payload)
}

// Memory renders the rolling-summary prompt.
func (s *Set) Memory(ctx context.Context, payload any) ([]*schema.Message, error) {
	return render(ctx, s.raw["memory"], nil, payload)
}

func render(ctx context.Context, system string, history []contractx.Message, payload any) ([]*schema.Message, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal prompt payload: %v", contractx.ErrValidation, err)
	}

	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.MessagesPlaceholder("chat_history", true),
		schema.UserMessage("{input}"),
	)
	msgs, err := template.Format(ctx, map[string]any{
		"chat_history": ToSchemaMessages(history),
		"input":        string(input),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	return msgs, nil
}

// ToSchemaMessages converts transcript entries to eino messages.
func ToSchemaMessages(history []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case contractx.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

// FormatHistory renders transcript entries one per line as "role: content".
func FormatHistory(history []contractx.Message) string {
	if len(history) == 0 {
		return "(no previous messages)"
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+strings.TrimSpace(m.Content))
	}
	return strings.Join(lines, "\n")
}
