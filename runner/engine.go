package runner

import (
	"context"
	"fmt"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/apibridge/dispatch"
	"github.com/effective-security/apibridge/jsonpath"
	"github.com/effective-security/apibridge/recovery"
	"github.com/effective-security/apibridge/resolver"
	"github.com/effective-security/apibridge/store"
	"github.com/effective-security/gogentic/chatmodel"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "runner")

const (
	// defaultMaxSteps bounds an execution even when the operator keeps
	// inserting additional steps.
	defaultMaxSteps = 20

	plannerTopK  = 7
	operatorTopK = 3
)

// StepRunner runs one descriptor through the recovery loop.
// recovery.Runner implements it.
type StepRunner interface {
	Run(ctx context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope
}

// Dispatcher performs a single dispatch without recovery; the re-auth flow
// uses it for the login call.
type Dispatcher interface {
	Dispatch(ctx context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope
}

// Engine drives one user request end to end: plan, execute each step through
// the operator and the recovery loop, then synthesize the final answer.
type Engine struct {
	planner  Planner
	operator Operator
	synth    Synthesizer
	catalog  Catalog
	steps    StepRunner

	gateway    UserGateway
	results    store.ResultStore
	login      *dispatch.CallDescriptor
	dispatcher Dispatcher
	maxSteps   int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithUserGateway wires the channel for ask_user questions and login
// credentials. Without it those flows fail the step instead of blocking.
func WithUserGateway(g UserGateway) EngineOption {
	return func(e *Engine) {
		e.gateway = g
	}
}

// WithResultStore persists every step output under the execution ID.
func WithResultStore(s store.ResultStore) EngineOption {
	return func(e *Engine) {
		e.results = s
	}
}

// WithReauth enables the login flow: when a step fails with an auth error,
// the engine asks the gateway for credentials, performs the login call and
// retries the step with the acquired token. The login call bypasses the
// recovery loop.
func WithReauth(login *dispatch.CallDescriptor, d Dispatcher) EngineOption {
	return func(e *Engine) {
		e.login = login
		e.dispatcher = d
	}
}

// WithMaxSteps overrides the execution budget.
func WithMaxSteps(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// NewEngine creates an execution engine.
func NewEngine(planner Planner, operator Operator, synth Synthesizer, catalog Catalog, steps StepRunner, opts ...EngineOption) *Engine {
	e := &Engine{
		planner:  planner,
		operator: operator,
		synth:    synth,
		catalog:  catalog,
		steps:    steps,
		maxSteps: defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of one plan execution.
type Result struct {
	ExecutionID string
	Plan        []string
	Chain       *Chain
	Answer      string
	Success     bool
}

// Execute plans the request and runs the plan to completion or to the first
// terminal failure. The returned Result always carries whatever chain was
// accumulated; the error return is reserved for planning failures.
func (e *Engine) Execute(ctx context.Context, userQuery string, history []Exchange) (*Result, error) {
	// executions inside a chat session reuse the chat ID, so stored step
	// results line up with the conversation
	execID := ""
	if chatCtx := chatmodel.GetChatContext(ctx); chatCtx != nil {
		execID = chatCtx.GetChatID()
	}
	if execID == "" {
		execID = uuid.NewString()
	}

	tools, err := e.catalog.Relevant(ctx, userQuery, plannerTopK)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load tool catalog")
	}
	plan, err := e.planner.Plan(ctx, userQuery, tools, history)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create plan")
	}
	logger.ContextKV(ctx, xlog.DEBUG,
		"execution", execID,
		"steps", len(plan),
		"plan", plan,
	)

	session := dispatch.NewSession()
	res := &Result{
		ExecutionID: execID,
		Plan:        plan,
		Chain:       NewChain(),
		Success:     true,
	}

	reauthed := false
	executed := 0
	i := 0

planLoop:
	for i < len(plan) {
		stepNo := i + 1
		if executed >= e.maxSteps {
			res.Success = false
			e.record(ctx, res, StepErrorKey(stepNo), "the plan exceeded the execution budget")
			break
		}
		executed++
		task := plan[i]

		stepTools, err := e.catalog.Relevant(ctx, task, operatorTopK)
		if err != nil {
			res.Success = false
			e.record(ctx, res, StepErrorKey(stepNo), err.Error())
			break
		}
		action, err := e.operator.NextAction(ctx, task, res.Chain.Map(), stepTools)
		if err != nil {
			res.Success = false
			e.record(ctx, res, StepErrorKey(stepNo), err.Error())
			break
		}

		switch action.Action {
		case ActionCallTool:
			desc := action.Descriptor()
			desc.Payload = resolver.Resolve(desc.Payload, res.Chain.Map())
			out := e.steps.Run(ctx, desc, &dispatch.CallContext{
				Session:   session,
				Task:      task,
				UserQuery: userQuery,
				Plan:      plan,
				Prior:     res.Chain.Map(),
			})
			if out.Success {
				e.record(ctx, res, StepResultKey(stepNo), out.Data)
				i++
				continue
			}
			if !reauthed && e.login != nil && e.gateway != nil && recovery.Classify(out) == recovery.CategoryAuth {
				if err := e.reauthenticate(ctx, session); err == nil {
					reauthed = true
					// retry the same step with the acquired token
					continue
				} else {
					logger.ContextKV(ctx, xlog.WARNING,
						"execution", execID,
						"status", "login_failed",
						"err", err.Error(),
					)
				}
			}
			res.Success = false
			if out.IsFinalError {
				e.record(ctx, res, StepErrorKey(stepNo), out.Explanation)
			} else {
				logger.ContextKV(ctx, xlog.WARNING,
					"execution", execID,
					"step", stepNo,
					"status", "step_failed",
					"err", out.Error,
				)
			}
			break planLoop

		case ActionAskUser:
			if e.gateway == nil {
				res.Success = false
				e.record(ctx, res, StepErrorKey(stepNo), "the operator needs user input, but no user gateway is configured")
				break planLoop
			}
			answer, err := e.gateway.Ask(ctx, action.Question)
			if err != nil {
				res.Success = false
				e.record(ctx, res, StepErrorKey(stepNo), err.Error())
				break planLoop
			}
			e.record(ctx, res, StepUserInfoKey(stepNo), answer)
			// re-run the same step with the acquired information

		case ActionProvideAnswer:
			e.record(ctx, res, StepResultKey(stepNo), action.Answer)
			i++

		case ActionSuggestStep:
			newStep := expandRefs(action.NewStep, res.Chain.Map())
			logger.ContextKV(ctx, xlog.DEBUG,
				"execution", execID,
				"status", "step_inserted",
				"reasoning", action.Reasoning,
				"step", newStep,
			)
			plan = append(plan[:i], append([]string{newStep}, plan[i:]...)...)
			res.Plan = plan

		default:
			res.Success = false
			e.record(ctx, res, StepErrorKey(stepNo), fmt.Sprintf("unknown operator action: %s", action.Action))
			break planLoop
		}
	}

	if res.Chain.Len() > 0 && e.synth != nil {
		answer, err := e.synth.Synthesize(ctx, userQuery, res.Chain.Map())
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"execution", execID,
				"status", "synthesis_failed",
				"err", err.Error(),
			)
		} else {
			res.Answer = answer
		}
	}
	return res, nil
}

func (e *Engine) record(ctx context.Context, res *Result, key string, value any) {
	res.Chain.Set(key, value)
	if e.results == nil {
		return
	}
	if err := e.results.Append(ctx, res.ExecutionID, store.Record{Step: key, Value: value}); err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"execution", res.ExecutionID,
			"status", "store_failed",
			"err", err.Error(),
		)
	}
}

// reauthenticate acquires credentials, performs the login call and stores the
// bearer token in the session.
func (e *Engine) reauthenticate(ctx context.Context, session *dispatch.Session) error {
	username, password, err := e.gateway.Credentials(ctx)
	if err != nil {
		return errors.WithMessage(err, "failed to acquire credentials")
	}

	out := e.dispatcher.Dispatch(ctx, &dispatch.CallDescriptor{
		Metadata: e.login.Metadata,
		Payload:  map[string]any{"username": username, "password": password},
	}, nil)
	if !out.Success {
		return errors.Newf("login failed: %s", out.Error)
	}
	data, ok := out.Data.(map[string]any)
	if !ok {
		return errors.New("login response did not contain access_token")
	}
	token, _ := data["access_token"].(string)
	if token == "" {
		return errors.New("login response did not contain access_token")
	}
	session.SetToken(token)
	return nil
}

var refExpr = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandRefs substitutes ${path} references inside an operator-suggested
// step with values from prior step outputs. Unresolvable references stay as
// written; the operator sees the prior data anyway.
func expandRefs(text string, prior map[string]any) string {
	return refExpr.ReplaceAllStringFunc(text, func(m string) string {
		if v, ok := jsonpath.Get(prior, m[2:len(m)-1]); ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return m
	})
}
