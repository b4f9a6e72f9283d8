package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	openrouterx "github.com/tanpawarit/Chative-Document-Assistant/pkg/openrouter"
)

type Provider string

const (
	// ProviderEino drives the eino-ext OpenAI chat model through a compiled graph.
	ProviderEino Provider = "eino"
	// ProviderOpenAI calls openai-go directly with a JSON-schema response format.
	ProviderOpenAI Provider = "openai"
)

type Config struct {
	Provider           Provider      `envconfig:"PROVIDER" split_words:"true" default:"eino"`
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.2"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	ClassifierModel          string  `envconfig:"CLASSIFIER_MODEL" split_words:"true"`
	QAModel                  string  `envconfig:"QA_MODEL" split_words:"true"`
	SummarizationModel       string  `envconfig:"SUMMARIZATION_MODEL" split_words:"true"`
	CalculationModel         string  `envconfig:"CALCULATION_MODEL" split_words:"true"`
	MemoryModel              string  `envconfig:"MEMORY_MODEL" split_words:"true"`
	ClassifierTemperature    float32 `envconfig:"CLASSIFIER_TEMPERATURE" split_words:"true" default:"0"`
	QATemperature            float32 `envconfig:"QA_TEMPERATURE" split_words:"true" default:"-1"`
	SummarizationTemperature float32 `envconfig:"SUMMARIZATION_TEMPERATURE" split_words:"true" default:"-1"`
	CalculationTemperature   float32 `envconfig:"CALCULATION_TEMPERATURE" split_words:"true" default:"0"`
	MemoryTemperature        float32 `envconfig:"MEMORY_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: llm api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	switch c.provider() {
	case ProviderEino, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: unknown llm provider %q", contractx.ErrValidation, c.Provider)
	}
	return nil
}

func (c Config) provider() Provider {
	p := Provider(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if p == "" {
		return ProviderEino
	}
	return p
}

// OpenRouterFor resolves the model and temperature overrides of one agent.
func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch agentType {
	case contractx.AgentTypeClassifier:
		override(c.ClassifierModel, c.ClassifierTemperature)
	case contractx.AgentTypeQA:
		override(c.QAModel, c.QATemperature)
	case contractx.AgentTypeSummarization:
		override(c.SummarizationModel, c.SummarizationTemperature)
	case contractx.AgentTypeCalculation:
		override(c.CalculationModel, c.CalculationTemperature)
	case contractx.AgentTypeMemory:
		override(c.MemoryModel, c.MemoryTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
