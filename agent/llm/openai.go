package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Document-Assistant/pkg/openrouter"
)

// OpenAIGenerator asks the chat completions API for a JSON-schema constrained reply.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Generator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(client *openai.Client, cfg openrouterx.Config) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:      client,
		model:       strings.TrimSpace(cfg.Model),
		temperature: float64(cfg.Temperature),
	}
	if cfg.MaxCompletionToken != nil {
		g.maxTokens = int64(*cfg.MaxCompletionToken)
	}
	return g
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req contractx.GenerationRequest, out any) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: generation request has no messages", contractx.ErrValidation)
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    toOpenAIMessages(withInstruction(req.Messages, req.Schema)),
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(g.maxTokens)
	}
	if req.Schema.JSON != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.Schema.Name,
					Description: openai.String(req.Schema.Description),
					Schema:      req.Schema.JSON,
					Strict:      openai.Bool(false),
				},
			},
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, req.Schema.Name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fmt.Errorf("%w: %s: no choices returned", contractx.ErrSchemaViolation, req.Schema.Name)
	}
	return decodeContent(ctx, resp.Choices[0].Message.Content, out)
}

func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		switch m.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(m.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
