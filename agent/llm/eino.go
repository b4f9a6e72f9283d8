package llm

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
)

// EinoGenerator runs a compiled model -> extract -> parse graph per
// generation and decodes the parsed object into the caller's output.
type EinoGenerator struct {
	runner compose.Runnable[[]*schema.Message, json.RawMessage]
}

var _ contractx.Generator = (*EinoGenerator)(nil)

// replyTrace marks whether the model node produced a reply, so a graph
// error can be told apart as a model or a parse failure.
type replyTrace struct {
	replied bool
}

type replyTraceKey struct{}

func markReplied(ctx context.Context) {
	if trace, ok := ctx.Value(replyTraceKey{}).(*replyTrace); ok {
		trace.replied = true
	}
}

func NewEinoGenerator(ctx context.Context, chatModel einomodel.BaseChatModel, graphName string) (*EinoGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is nil", contractx.ErrValidation)
	}

	extract := compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*schema.Message, error) {
		markReplied(ctx)
		if msg == nil {
			return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
		}
		text := extractJSON(msg.Content)
		if text == "" {
			return nil, fmt.Errorf("%w: empty model reply", contractx.ErrSchemaViolation)
		}
		return schema.AssistantMessage(text, nil), nil
	})

	graph := compose.NewGraph[[]*schema.Message, json.RawMessage]()
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add generation model node: %w", err)
	}
	if err := graph.AddLambdaNode("extract_json", extract); err != nil {
		return nil, fmt.Errorf("add generation extract node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(replyParser)); err != nil {
		return nil, fmt.Errorf("add generation parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "model"); err != nil {
		return nil, fmt.Errorf("add generation edge start->model: %w", err)
	}
	if err := graph.AddEdge("model", "extract_json"); err != nil {
		return nil, fmt.Errorf("add generation edge model->extract: %w", err)
	}
	if err := graph.AddEdge("extract_json", "parse_json"); err != nil {
		return nil, fmt.Errorf("add generation edge extract->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add generation edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile generation graph: %w", err)
	}
	return &EinoGenerator{runner: runner}, nil
}

func (g *EinoGenerator) Generate(ctx context.Context, req contractx.GenerationRequest, out any) error {
	if len(req.Messages) == 0 {
		return fmt.Errorf("%w: generation request has no messages", contractx.ErrValidation)
	}

	trace := &replyTrace{}
	raw, err := g.runner.Invoke(context.WithValue(ctx, replyTraceKey{}, trace), withInstruction(req.Messages, req.Schema))
	if err != nil {
		if trace.replied {
			return fmt.Errorf("%w: %s: %v", contractx.ErrSchemaViolation, req.Schema.Name, err)
		}
		return fmt.Errorf("%w: %s: %v", contractx.ErrModelInvoke, req.Schema.Name, err)
	}
	return decodeRaw(raw, out)
}
