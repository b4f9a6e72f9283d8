package classifier

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
)

type Config struct {
	// MinConfidence is the threshold below which a classification resolves to unknown.
	MinConfidence float64 `envconfig:"MIN_CONFIDENCE" default:"0.3"`
	HistoryWindow int     `envconfig:"HISTORY_WINDOW" default:"6"`
}

func (c Config) withDefaults() Config {
	if c.MinConfidence <= 0 || c.MinConfidence > 1 {
		c.MinConfidence = contractx.DegradedConfidence
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = 6
	}
	return c
}

type Classifier struct {
	gen     contractx.Generator
	prompts *promptx.Set
	cfg     Config
}

func New(gen contractx.Generator, prompts *promptx.Set, cfg Config) *Classifier {
	if prompts == nil {
		prompts = promptx.LoadSet()
	}
	return &Classifier{gen: gen, prompts: prompts, cfg: cfg.withDefaults()}
}

// Classify labels the latest user message. A client failure is returned as is;
// no default intent is synthesized.
func (c *Classifier) Classify(ctx context.Context, userInput string, history []contractx.Message) (contractx.Intent, error) {
	if strings.TrimSpace(userInput) == "" {
		return contractx.Intent{}, fmt.Errorf("%w: user input is required", contractx.ErrValidation)
	}

	msgs, err := c.prompts.Classification(ctx, userInput, window(history, c.cfg.HistoryWindow))
	if err != nil {
		return contractx.Intent{}, err
	}

	var out contractx.IntentOutput
	if err := c.gen.Generate(ctx, contractx.GenerationRequest{Schema: contractx.SchemaIntent, Messages: msgs}, &out); err != nil {
		return contractx.Intent{}, err
	}
	return c.normalize(out), nil
}

func (c *Classifier) normalize(out contractx.IntentOutput) contractx.Intent {
	intent := contractx.Intent{
		Type:       contractx.ParseIntentType(out.IntentType),
		Confidence: contractx.ClampConfidence(out.Confidence),
		Reasoning:  strings.TrimSpace(out.Reasoning),
	}
	if intent.Type != contractx.IntentUnknown && intent.Confidence < c.cfg.MinConfidence {
		intent.Reasoning = strings.TrimSpace(fmt.Sprintf("%s (low confidence %s resolved to unknown)", intent.Reasoning, intent.Type))
		intent.Type = contractx.IntentUnknown
	}
	return intent
}

func window(history []contractx.Message, n int) []contractx.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}
