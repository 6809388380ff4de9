package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/agentcore/agentcore/pkg/agentcore/aggregator"
	"github.com/agentcore/agentcore/pkg/agentcore/checkpoint"
	"github.com/agentcore/agentcore/pkg/agentcore/config"
	"github.com/agentcore/agentcore/pkg/agentcore/event"
	"github.com/agentcore/agentcore/pkg/agentcore/llm"
	"github.com/agentcore/agentcore/pkg/agentcore/template"
	"github.com/agentcore/agentcore/pkg/agentcore/tools"
)

// buildGateway picks an llm.Gateway from the "gateway" section of cfg.
// The "anthropic" and "openai" drivers require the API key from the
// environment, kept out of the config file deliberately; "mock" and
// "claude-cli" need none.
func buildGateway(cfg config.Config, env appEnv) (llm.Gateway, error) {
	gw := cfg.Sub("gateway")
	model := gw.String("model", "mock-model")

	switch driver := gw.String("driver", "mock"); driver {
	case "mock":
		return llm.NewMockGateway("mock response").WithResponses(
			"I don't have a real model configured, but here's a placeholder answer.",
		), nil
	case "claude-cli":
		return llm.NewClaudeCLI(
			llm.WithClaudeCLIModel(model),
			llm.WithClaudeCLITimeout(gw.Duration("timeout", 60*time.Second)),
		), nil
	case "anthropic":
		if env.GatewayAPIKey == "" {
			return nil, fmt.Errorf("gateway driver %q requires AGENTCORE_GATEWAY_API_KEY", driver)
		}
		return llm.NewAnthropicGatewayFromAPIKey(env.GatewayAPIKey, model), nil
	case "openai":
		if env.GatewayAPIKey == "" {
			return nil, fmt.Errorf("gateway driver %q requires AGENTCORE_GATEWAY_API_KEY", driver)
		}
		return llm.NewOpenAIGateway(env.GatewayAPIKey, model), nil
	default:
		return nil, fmt.Errorf("unknown gateway driver %q", driver)
	}
}

// buildCapabilities classifies the models listed under
// gateway.reasoning_models and gateway.standard_models in cfg; any other
// model gets the registry's default (standard chat) bucket.
func buildCapabilities(cfg config.Config) *llm.CapabilityRegistry {
	reg := llm.NewCapabilityRegistry()
	for _, model := range cfg.Sub("gateway").StringSlice("reasoning_models", nil) {
		reg.Classify(model, llm.BucketReasoning)
	}
	for _, model := range cfg.Sub("gateway").StringSlice("standard_models", nil) {
		reg.Classify(model, llm.BucketStandardChat)
	}
	return reg
}

// buildToolRegistry wires the four reference tools from pkg/agentcore/tools
// into a fresh ToolRegistry.
func buildToolRegistry() *llm.ToolRegistry {
	reg := llm.NewToolRegistry()
	reg.Register(&tools.DateResolver{})
	reg.Register(tools.NewMarkdownRenderer())
	reg.Register(&tools.ReadableTextExtractor{})
	reg.Register(&tools.PDFTextExtractor{})
	return reg
}

// buildCheckpointStore picks a checkpoint.Store from the "checkpoint"
// section of cfg. "memory" is the default so the CLI runs with zero
// configuration.
func buildCheckpointStore(cfg config.Config, env appEnv) (checkpoint.Store, error) {
	cp := cfg.Sub("checkpoint")
	switch driver := cp.String("driver", "memory"); driver {
	case "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		path := cp.String("path", "agentcore-checkpoints.db")
		return checkpoint.NewSQLiteStore(path)
	case "postgres":
		if env.CheckpointDBURL == "" {
			return nil, fmt.Errorf("checkpoint driver %q requires AGENTCORE_CHECKPOINT_DB", driver)
		}
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, env.CheckpointDBURL)
		if err != nil {
			return nil, fmt.Errorf("connect checkpoint database: %w", err)
		}
		store := checkpoint.NewPostgresStore(pool)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("initialize checkpoint table: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q (s3 requires wiring an S3Config in code, not via this flag)", driver)
	}
}

// buildAggregatorStore picks an event.Store for the Correlation
// Aggregator. "redis" requires AGENTCORE_REDIS_URL; everything else
// defaults to an in-memory, single-process buffer.
func buildAggregatorStore(cfg config.Config, env appEnv, logger *slog.Logger) (event.Store, error) {
	agg := cfg.Sub("aggregator")
	switch driver := agg.String("driver", "memory"); driver {
	case "memory":
		return event.NewMemoryStore(), nil
	case "redis":
		if env.RedisURL == "" {
			return nil, fmt.Errorf("aggregator driver %q requires AGENTCORE_REDIS_URL", driver)
		}
		opts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse AGENTCORE_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		logger.Info("aggregator buffering through redis", slog.String("addr", opts.Addr))
		return aggregator.NewRedisStore(client, aggregator.WithBufferTTL(agg.Duration("buffer_ttl", time.Hour))), nil
	default:
		return nil, fmt.Errorf("unknown aggregator driver %q", driver)
	}
}

// buildBroker assembles a Broker from cfg, wiring WithArgumentExpansion
// only when the config file actually defines template variables under
// "tool_template_vars" (e.g. a "today" or "user_id" placeholder every
// tool call should see without the model having to supply it).
func buildBroker(cfg config.Config, gateway llm.Gateway, capabilities *llm.CapabilityRegistry, toolRegistry *llm.ToolRegistry) *llm.Broker {
	model := cfg.Sub("gateway").String("model", "mock-model")
	maxDepth := cfg.Int("max_tool_depth", 8)

	var opts []llm.BrokerOption
	if vars := cfg.Any("tool_template_vars", nil); vars != nil {
		if varMap, ok := vars.(map[string]any); ok {
			opts = append(opts, llm.WithArgumentExpansion(template.WithArgumentExpansion(varMap)))
		}
	}

	return llm.NewBroker(gateway, capabilities, toolRegistry, model, maxDepth, opts...)
}
