package contract

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// GenerationRequest is a rendered prompt plus the schema the reply must conform to.
type GenerationRequest struct {
	Schema   Schema
	Messages []*schema.Message
}

// Generator is the structured generation client shared by every node.
// Implementations decode the model reply into out or return an error
// wrapping ErrModelInvoke or ErrSchemaViolation.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest, out any) error
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerationRequest, out any) error

func (f GeneratorFunc) Generate(ctx context.Context, req GenerationRequest, out any) error {
	return f(ctx, req, out)
}
