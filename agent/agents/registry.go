package agents

import (
	"context"
	"fmt"

	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents/classifier"
	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents/memory"
	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents/responder"
	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	llmx "github.com/tanpawarit/Chative-Document-Assistant/agent/llm"
	nodex "github.com/tanpawarit/Chative-Document-Assistant/agent/nodes"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

type Config struct {
	Classifier classifier.Config `envconfig:"CLASSIFIER"`
	Responder  responder.Config  `envconfig:"RESPONDER"`
	Memory     memory.Config     `envconfig:"MEMORY"`
}

// Registry holds every agent the turn graph invokes.
type Registry struct {
	classifier    *classifier.Classifier
	qa            *responder.QA
	summarization *responder.Summarization
	calculation   *responder.Calculation
	memory        *memory.Updater
}

// Build creates one generator per agent from the LLM config.
func Build(ctx context.Context, llmCfg llmx.Config, tools *toolx.Registry, prompts *promptx.Set, cfg Config) (*Registry, error) {
	if err := llmCfg.Validate(); err != nil {
		return nil, err
	}

	gens := make(map[contractx.AgentType]contractx.Generator, 5)
	for _, agentType := range []contractx.AgentType{
		contractx.AgentTypeClassifier,
		contractx.AgentTypeQA,
		contractx.AgentTypeSummarization,
		contractx.AgentTypeCalculation,
		contractx.AgentTypeMemory,
	} {
		gen, err := llmx.NewGenerator(ctx, llmCfg, agentType)
		if err != nil {
			return nil, fmt.Errorf("create %s generator: %w", agentType, err)
		}
		gens[agentType] = gen
	}
	return build(func(t contractx.AgentType) contractx.Generator { return gens[t] }, tools, prompts, cfg), nil
}

// NewWithGenerator wires every agent to a single generator.
func NewWithGenerator(gen contractx.Generator, tools *toolx.Registry, prompts *promptx.Set, cfg Config) *Registry {
	return build(func(contractx.AgentType) contractx.Generator { return gen }, tools, prompts, cfg)
}

func build(genFor func(contractx.AgentType) contractx.Generator, tools *toolx.Registry, prompts *promptx.Set, cfg Config) *Registry {
	if prompts == nil {
		prompts = promptx.LoadSet()
	}
	if tools == nil {
		tools = toolx.NewRegistry(nil)
	}
	return &Registry{
		classifier:    classifier.New(genFor(contractx.AgentTypeClassifier), prompts, cfg.Classifier),
		qa:            responder.NewQA(genFor(contractx.AgentTypeQA), prompts, tools, cfg.Responder),
		summarization: responder.NewSummarization(genFor(contractx.AgentTypeSummarization), prompts, tools, cfg.Responder),
		calculation:   responder.NewCalculation(genFor(contractx.AgentTypeCalculation), prompts, tools, cfg.Responder),
		memory:        memory.New(genFor(contractx.AgentTypeMemory), prompts, tools.Corpus(), cfg.Memory),
	}
}

func (r *Registry) Nodes() nodex.Agents {
	return nodex.Agents{
		Classifier:    r.classifier,
		QA:            r.qa,
		Summarization: r.summarization,
		Calculation:   r.calculation,
		Memory:        r.memory,
	}
}
