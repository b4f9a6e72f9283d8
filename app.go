package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents"
	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents/orchestrator"
	llmx "github.com/tanpawarit/Chative-Document-Assistant/agent/llm"
	promptx "github.com/tanpawarit/Chative-Document-Assistant/agent/prompt"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
	configx "github.com/tanpawarit/Chative-Document-Assistant/pkg/config"
	obsx "github.com/tanpawarit/Chative-Document-Assistant/pkg/observability"
	qstashx "github.com/tanpawarit/Chative-Document-Assistant/pkg/qstash"
)

const (
	backendMemory   = "memory"
	backendSQLite   = "sqlite"
	backendPostgres = "postgres"
	backendUpstash  = "upstash"
)

type AppConfig struct {
	CheckpointBackend    string `envconfig:"CHECKPOINT_BACKEND" default:"sqlite"`
	CheckpointSQLitePath string `envconfig:"CHECKPOINT_SQLITE_PATH" default:"data/checkpoints.db"`
	ToolsCorpusPath      string `envconfig:"TOOLS_CORPUS_PATH"`
	ToolsAuditDir        string `envconfig:"TOOLS_AUDIT_DIR" default:"logs"`
}

// app owns the long-lived collaborators of one CLI invocation.
type app struct {
	cfg     AppConfig
	store   statex.Store
	corpus  *toolx.Corpus
	audit   *toolx.JSONLAuditSink
	tools   *toolx.Registry
	orch    *orchestrator.Orchestrator
	closers []io.Closer
}

func loadAppConfig() (*AppConfig, error) {
	cfg, err := configx.New[AppConfig]("")
	if err != nil {
		return nil, fmt.Errorf("load app config: %w", err)
	}
	cfg.CheckpointBackend = strings.ToLower(strings.TrimSpace(cfg.CheckpointBackend))
	return cfg, nil
}

// newApp opens the corpus, audit log and checkpoint store. The orchestrator
// is only built when withAgents is set, since it needs LLM credentials.
func newApp(ctx context.Context, withAgents bool) (*app, error) {
	cfg, err := loadAppConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: *cfg}

	a.corpus, err = toolx.LoadCorpus(cfg.ToolsCorpusPath)
	if err != nil {
		return nil, err
	}
	a.audit, err = toolx.NewJSONLAuditSink(cfg.ToolsAuditDir)
	if err != nil {
		return nil, err
	}
	a.tools = toolx.NewRegistry(a.corpus, toolx.WithAuditSink(a.audit))

	a.store, err = a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if withAgents {
		if err := a.buildOrchestrator(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (statex.Store, error) {
	switch a.cfg.CheckpointBackend {
	case backendMemory:
		store := statex.NewMemoryStore()
		a.closers = append(a.closers, store)
		return store, nil
	case backendSQLite, "":
		path := a.cfg.CheckpointSQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create checkpoint directory: %w", err)
			}
		}
		store, err := statex.NewSQLiteStore(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoint store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case backendPostgres:
		pgCfg, err := configx.New[statex.PostgresConfig]("POSTGRES")
		if err != nil {
			return nil, fmt.Errorf("load postgres config: %w", err)
		}
		store, err := statex.NewPostgresStore(ctx, *pgCfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres checkpoint store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case backendUpstash:
		redisCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return nil, fmt.Errorf("load upstash redis config: %w", err)
		}
		store, err := statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			return nil, fmt.Errorf("open upstash checkpoint store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", a.cfg.CheckpointBackend)
	}
}

func (a *app) buildOrchestrator(ctx context.Context) error {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return fmt.Errorf("load llm config: %w", err)
	}
	agentsCfg, err := configx.New[agents.Config]("")
	if err != nil {
		return fmt.Errorf("load agent config: %w", err)
	}

	registry, err := agents.Build(ctx, *llmCfg, a.tools, promptx.LoadSet(), *agentsCfg)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{orchestrator.WithRecorder(obsx.NewGlobal())}

	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return fmt.Errorf("load qstash config: %w", err)
	}
	if qstashCfg.Enabled() {
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			return err
		}
		opts = append(opts, orchestrator.WithPublisher(client))
		log.Info().Str("destination", qstashCfg.Destination).Msg("turn events enabled")
	}

	a.orch, err = orchestrator.New(a.store, registry.Nodes(), opts...)
	return err
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
