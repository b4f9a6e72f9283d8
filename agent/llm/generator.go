package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Document-Assistant/pkg/openrouter"
)

// NewGenerator builds the structured generation client for one agent.
func NewGenerator(ctx context.Context, cfg Config, agentType contractx.AgentType) (contractx.Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	orCfg := cfg.OpenRouterFor(agentType)

	switch cfg.provider() {
	case ProviderOpenAI:
		client := openrouterx.NewClient(orCfg)
		if client == nil {
			return nil, fmt.Errorf("%w: openai client requires an api key", contractx.ErrValidation)
		}
		return NewOpenAIGenerator(client, orCfg), nil
	default:
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
		}
		return NewEinoGenerator(ctx, chatModel, "llm."+string(agentType))
	}
}

// schemaInstruction tells the model which JSON object to return.
func schemaInstruction(s contractx.Schema) string {
	raw, _ := json.Marshal(s.JSON)
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else.")
	if s.Name != "" {
		fmt.Fprintf(&b, " The object is a %s", s.Name)
		if s.Description != "" {
			fmt.Fprintf(&b, " (%s)", s.Description)
		}
		b.WriteString(".")
	}
	fmt.Fprintf(&b, "\nJSON Schema:\n%s", raw)
	return b.String()
}

// withInstruction returns msgs with the schema instruction merged into the
// leading system message, leaving the caller's slice untouched.
func withInstruction(msgs []*schema.Message, s contractx.Schema) []*schema.Message {
	instruction := schemaInstruction(s)
	out := make([]*schema.Message, 0, len(msgs)+1)
	if len(msgs) > 0 && msgs[0] != nil && msgs[0].Role == schema.System {
		first := *msgs[0]
		first.Content = strings.TrimSpace(first.Content) + "\n\n" + instruction
		out = append(out, &first)
		out = append(out, msgs[1:]...)
		return out
	}
	out = append(out, schema.SystemMessage(instruction))
	return append(out, msgs...)
}

// replyParser is the eino JSON parser shared by both generator paths. It
// yields the raw object so callers can decode into any output type.
var replyParser = schema.NewMessageJSONParser[json.RawMessage](&schema.MessageJSONParseConfig{
	ParseFrom: schema.MessageParseFromContent,
})

// extractJSON strips markdown fences and any prose around the outermost
// JSON object in a model reply.
func extractJSON(content string) string {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	return text
}

// decodeContent parses a model reply into out, tolerating markdown fences
// and text around the object.
func decodeContent(ctx context.Context, content string, out any) error {
	text := extractJSON(content)
	if text == "" {
		return fmt.Errorf("%w: empty model reply", contractx.ErrSchemaViolation)
	}
	raw, err := replyParser.Parse(ctx, schema.AssistantMessage(text, nil))
	if err != nil {
		return fmt.Errorf("%w: parse model reply: %v", contractx.ErrSchemaViolation, err)
	}
	return decodeRaw(raw, out)
}

func decodeRaw(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode model reply: %v", contractx.ErrSchemaViolation, err)
	}
	return nil
}
