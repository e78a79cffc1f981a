package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"

	"github.com/teamcheckmate/chaekcheck/db"
	"github.com/teamcheckmate/chaekcheck/internal/chat"
	"github.com/teamcheckmate/chaekcheck/internal/config"
	"github.com/teamcheckmate/chaekcheck/internal/knowledge"
	"github.com/teamcheckmate/chaekcheck/internal/retrieval"
	"github.com/teamcheckmate/chaekcheck/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	a := &App{Config: cfg}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				slog.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	store, pool, err := provideChunkStore(ctx, cfg, embedder)
	if err != nil {
		return nil, err
	}
	a.Knowledge = store
	a.DBPool = pool

	a.Sessions = session.NewStore(cfg.SessionCapacity, cfg.SessionTTL, slog.Default())

	agent, err := provideAgent(a, cfg)
	if err != nil {
		return nil, err
	}
	a.Agent = agent

	return a, nil
}

// provideOtelShutdown registers an OTLP trace exporter with Genkit's
// TracerProvider. Must run before provideGenkit. Returns a no-op cleanup when
// no endpoint is configured.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector doesn't need TLS
	)
	if err != nil {
		slog.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	slog.Debug("trace export enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports googleai (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		slog.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		slog.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - googleai: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default: // googleai
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideChunkStore creates the chunk store: PostgreSQL + pgvector in
// production, in-memory in dev mode. The returned pool is nil in dev mode.
func provideChunkStore(ctx context.Context, cfg *config.Config, embedder ai.Embedder) (knowledge.Store, *pgxpool.Pool, error) {
	if cfg.DevMode {
		store, err := knowledge.NewMemStore(embedder, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("creating in-memory store: %w", err)
		}
		slog.Info("using in-memory chunk store (dev mode)")
		return store, nil, nil
	}

	if err := db.Migrate(cfg.PostgresDSN()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return knowledge.NewPGStore(pool, embedder, slog.Default()), pool, nil
}

// provideAgent assembles the pipeline from configuration: model client,
// single or multi-query retrieval, optional router, generator, orchestrator.
func provideAgent(a *App, cfg *config.Config) (*chat.Agent, error) {
	logger := slog.Default()

	client, err := chat.NewClient(chat.ClientConfig{
		Genkit:      a.Genkit,
		Provider:    cfg.Provider,
		ModelName:   cfg.FullModelName(),
		Temperature: cfg.Temperature,
		// 10 req/s with small bursts keeps retries from amplifying load.
		Limiter: rate.NewLimiter(rate.Limit(10), 20),
		Logger:  logger.With("component", "llm"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	var searcher retrieval.Searcher
	searcher, err = retrieval.NewRetriever(a.Knowledge, cfg.TopK, logger.With("component", "retrieval"))
	if err != nil {
		return nil, fmt.Errorf("creating retriever: %w", err)
	}
	if cfg.MultiQuery {
		searcher, err = retrieval.NewMultiQuery(searcher, client, cfg.Expansions, cfg.IncludeOrig,
			logger.With("component", "multiquery"))
		if err != nil {
			return nil, fmt.Errorf("creating multi-query retriever: %w", err)
		}
	}

	var router *chat.Router
	if cfg.RouterEnabled {
		router, err = chat.NewRouter(client, cfg.RouterPrompt, logger.With("component", "router"))
		if err != nil {
			return nil, fmt.Errorf("creating router: %w", err)
		}
	}

	reformulator, err := chat.NewReformulator(client, cfg.ReformulatePrompt, logger.With("component", "reformulator"))
	if err != nil {
		return nil, fmt.Errorf("creating reformulator: %w", err)
	}

	generator, err := chat.NewGenerator(client, cfg.AnswerPrompt, logger.With("component", "generator"))
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}

	agent, err := chat.New(chat.Config{
		Router:       router,
		Reformulator: reformulator,
		Searcher:     searcher,
		Generator:    generator,
		Sessions:     a.Sessions,
		MaxCitations: cfg.MaxCitations,
		PreviewLen:   cfg.PreviewLength,
		Logger:       logger.With("component", "chat"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	return agent, nil
}
