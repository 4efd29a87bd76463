// Package apibridge assembles the execution engine from configuration: the
// protocol dispatcher, the recovery loop, the LLM-backed oracles and the
// result store, wired together behind one constructor.
package apibridge

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/apibridge/config"
	"github.com/effective-security/apibridge/dispatch"
	"github.com/effective-security/apibridge/oracle"
	"github.com/effective-security/apibridge/recovery"
	"github.com/effective-security/apibridge/runner"
	"github.com/effective-security/apibridge/store"
	"github.com/effective-security/gogentic/pkg/llmfactory"
	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/redis/go-redis/v9"
)

// Bridge holds the assembled engine and its shared components.
type Bridge struct {
	Engine     *runner.Engine
	Dispatcher *dispatch.Dispatcher
	Recovery   *recovery.Runner
	Results    store.ResultStore
}

// Options tunes the assembly beyond what the configuration file carries.
type Options struct {
	// Catalog supplies the tools; required.
	Catalog runner.Catalog
	// Registry resolves gRPC calls; nil disables the gRPC invoker.
	Registry *dispatch.Registry
	// Gateway enables ask_user questions and the login flow.
	Gateway runner.UserGateway
	// Login is the descriptor of the login call for re-authentication.
	Login *dispatch.CallDescriptor
}

// New builds the engine from configuration. Oracle models are resolved
// through the model factory per oracle name, with `default` as the fallback.
func New(cfg *config.Config, opts Options) (*Bridge, error) {
	if opts.Catalog == nil {
		return nil, errors.New("tool catalog is required")
	}

	factory, err := llmfactory.Load(cfg.LLMConfig)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load LLM configuration")
	}
	model := func(name string) (llms.Model, error) {
		return factory.AssistantModel(name, cfg.Oracles[name]...)
	}

	registry := opts.Registry
	if registry == nil {
		registry = dispatch.NewRegistry()
	}
	for service, target := range cfg.GRPC.Targets {
		registry.SetTarget(service, target)
	}

	fieldsModel, err := model("fields")
	if err != nil {
		return nil, err
	}
	dispatcher := dispatch.New(cfg.GraphQL.Endpoint, registry,
		dispatch.WithPathOracle(oracle.NewFieldSuggester(fieldsModel)),
	)

	advisorModel, err := model("advisor")
	if err != nil {
		return nil, err
	}
	rec := recovery.NewRunner(dispatcher, oracle.NewAdvisor(advisorModel),
		recovery.WithMaxRetries(cfg.Recovery.MaxRetries),
		recovery.WithBackoffUnit(cfg.Recovery.BackoffUnit()),
	)

	plannerModel, err := model("planner")
	if err != nil {
		return nil, err
	}
	operatorModel, err := model("operator")
	if err != nil {
		return nil, err
	}
	synthModel, err := model("synthesizer")
	if err != nil {
		return nil, err
	}

	results := store.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		results = store.NewRedisStore(client, cfg.Redis.Prefix)
	}

	engineOpts := []runner.EngineOption{
		runner.WithResultStore(results),
	}
	if opts.Gateway != nil {
		engineOpts = append(engineOpts, runner.WithUserGateway(opts.Gateway))
	}
	if opts.Login != nil {
		engineOpts = append(engineOpts, runner.WithReauth(opts.Login, dispatcher))
	}

	engine := runner.NewEngine(
		oracle.NewPlanner(plannerModel),
		oracle.NewOperator(operatorModel),
		oracle.NewSynthesizer(synthModel),
		opts.Catalog,
		rec,
		engineOpts...,
	)

	return &Bridge{
		Engine:     engine,
		Dispatcher: dispatcher,
		Recovery:   rec,
		Results:    results,
	}, nil
}
