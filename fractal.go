// Package fractal provides a high-level façade for building LLM agents that
// call tools, delegate to other agents and leave a replayable execution
// trace. Most applications interact with this package by:
//  1. Loading a Config (config.Load) or constructing Options directly
//  2. Creating an agent via NewAgent, which wires the model backend,
//     structured logger and tracing ledger from the configuration
//  3. Registering tools and delegates, then calling Run
//
// The façade delegates execution to agent.Agent while keeping setup
// ergonomics concise. Defaults are safe for local development; production
// deployments typically supply API keys and a trace output path through
// configuration.
package fractal

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/fractalmesh/fractal/agent"
	"github.com/fractalmesh/fractal/config"
	"github.com/fractalmesh/fractal/logging"
	"github.com/fractalmesh/fractal/model"
	"github.com/fractalmesh/fractal/model/anthropic"
	"github.com/fractalmesh/fractal/model/openai"
	"github.com/fractalmesh/fractal/trace"
)

// Options configures a façade-constructed agent beyond what Config carries.
type Options struct {
	// Instruction is the agent's system prompt. Defaults to a generic
	// assistant prompt when empty.
	Instruction string

	// Backend overrides the backend selected from Config.Model. Useful for
	// tests that substitute model.NewMockBackend.
	Backend model.Backend

	// Logger overrides the logger built from Config.Log.
	Logger logging.Logger

	// Ledger overrides the ledger built from Config.Trace.
	Ledger *trace.Ledger
}

// NewAgent builds an agent from configuration: the model backend is chosen
// by Config.Model.Provider, logging by Config.Log and tracing by
// Config.Trace. A nil cfg uses defaults throughout.
func NewAgent(name string, cfg *config.Config, optFns ...func(o *Options)) (*agent.Agent, error) {
	if cfg == nil {
		var err error
		if cfg, err = config.Load(""); err != nil {
			return nil, err
		}
	}

	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.New(&logging.Config{
			Level:  logging.ParseLevel(cfg.Log.Level),
			Format: cfg.Log.Format,
		})
	}

	backend := opts.Backend
	if backend == nil {
		var err error
		if backend, err = newBackend(cfg.Model); err != nil {
			return nil, err
		}
	}

	ledger := opts.Ledger
	if ledger == nil && cfg.Trace.Enabled {
		ledger = trace.NewLedger(func(o *trace.LedgerOptions) {
			o.OutputPath = cfg.Trace.OutputPath
			o.Logger = logger
		})
	}

	a := agent.New(name, backend, func(o *agent.Options) {
		if opts.Instruction != "" {
			o.Instruction = agent.NewInstruction(opts.Instruction)
		}
		if cfg.Agent.MaxIterations > 0 {
			o.MaxIterations = cfg.Agent.MaxIterations
		}
		if cfg.Agent.MaxRetries > 0 {
			o.MaxRetries = cfg.Agent.MaxRetries
		}
		o.ContextWindow = cfg.Agent.ContextWindow
		o.Temperature = cfg.Model.Temperature
		o.MaxTokens = cfg.Model.MaxTokens
		o.Ledger = ledger
		o.Logger = logger
	})

	return a, nil
}

func newBackend(mc config.ModelConfig) (model.Backend, error) {
	switch mc.Provider {
	case "openai", "":
		return openai.New(func(o *openai.Options) {
			if mc.Name != "" {
				o.Model = mc.Name
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if mc.Name != "" {
				o.Model = anthropicsdk.Model(mc.Name)
			}
			o.Temperature = mc.Temperature
			if mc.MaxTokens > 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
		}), nil
	case "mock":
		return model.NewMockBackend(), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}
