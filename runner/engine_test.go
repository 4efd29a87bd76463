package runner

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/apibridge/dispatch"
	"github.com/effective-security/apibridge/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlanner struct {
	plan []string
	err  error
}

func (p *fakePlanner) Plan(context.Context, string, []Tool, []Exchange) ([]string, error) {
	return p.plan, p.err
}

type fakeOperator struct {
	actions []*Action
	err     error
	tasks   []string
	priors  []map[string]any
}

func (o *fakeOperator) NextAction(_ context.Context, task string, prior map[string]any, _ []Tool) (*Action, error) {
	o.tasks = append(o.tasks, task)
	o.priors = append(o.priors, prior)
	if o.err != nil {
		return nil, o.err
	}
	idx := len(o.tasks) - 1
	if idx >= len(o.actions) {
		idx = len(o.actions) - 1
	}
	return o.actions[idx], nil
}

type fakeSynth struct {
	answer  string
	err     error
	results []map[string]any
}

func (s *fakeSynth) Synthesize(_ context.Context, _ string, results map[string]any) (string, error) {
	s.results = append(s.results, results)
	return s.answer, s.err
}

type fakeSteps struct {
	script   []*dispatch.ResultEnvelope
	descs    []*dispatch.CallDescriptor
	contexts []*dispatch.CallContext
}

func (f *fakeSteps) Run(_ context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope {
	f.descs = append(f.descs, desc)
	f.contexts = append(f.contexts, callCtx)
	idx := len(f.descs) - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return f.script[idx]
}

type fakeGateway struct {
	answer    string
	username  string
	password  string
	questions []string
}

func (g *fakeGateway) Ask(_ context.Context, question string) (string, error) {
	g.questions = append(g.questions, question)
	return g.answer, nil
}

func (g *fakeGateway) Credentials(context.Context) (string, string, error) {
	return g.username, g.password, nil
}

func callTool(meta dispatch.ToolMetadata, payload map[string]any) *Action {
	return &Action{Action: ActionCallTool, ToolMetadata: meta, Payload: payload}
}

func TestExecuteHappyPath(t *testing.T) {
	meta := dispatch.ToolMetadata{Type: dispatch.ProtocolREST, PathTemplate: "/orders/{order_id}"}
	operator := &fakeOperator{actions: []*Action{
		callTool(meta, map[string]any{"order_id": "ord-002"}),
		callTool(meta, map[string]any{"user_id": "${step_1_result.userId}"}),
	}}
	steps := &fakeSteps{script: []*dispatch.ResultEnvelope{
		dispatch.NewSuccess(map[string]any{"userId": float64(5), "status": "shipped"}),
		dispatch.NewSuccess(map[string]any{"email": "bob@example.com"}),
	}}
	synth := &fakeSynth{answer: "The order shipped; the owner is bob@example.com."}
	results := store.NewMemoryStore()

	e := NewEngine(
		&fakePlanner{plan: []string{"fetch order ord-002", "fetch the order's user"}},
		operator, synth, NewStaticCatalog(), steps,
		WithResultStore(results),
	)
	res, err := e.Execute(context.Background(), "who owns order ord-002?", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, "The order shipped; the owner is bob@example.com.", res.Answer)

	// step_1_result chained into step 2's payload
	require.Len(t, steps.descs, 2)
	assert.Equal(t, map[string]any{"user_id": float64(5)}, steps.descs[1].Payload)
	// operator for step 2 saw step 1's output
	require.Len(t, operator.priors, 2)
	assert.Contains(t, operator.priors[1], "step_1_result")

	// chain and store agree on order
	assert.Equal(t, []string{"step_1_result", "step_2_result"}, res.Chain.Keys())
	recs, err := results.Records(context.Background(), res.ExecutionID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "step_1_result", recs[0].Step)
}

func TestExecuteStepFailureStopsPlan(t *testing.T) {
	meta := dispatch.ToolMetadata{Type: dispatch.ProtocolREST}
	operator := &fakeOperator{actions: []*Action{callTool(meta, nil)}}
	steps := &fakeSteps{script: []*dispatch.ResultEnvelope{
		dispatch.NewFailure("HTTP error: 500"),
	}}
	synth := &fakeSynth{answer: "unused"}

	e := NewEngine(&fakePlanner{plan: []string{"a", "b"}}, operator, synth, NewStaticCatalog(), steps)
	res, err := e.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.Chain.Len())
	// nothing to synthesize from
	assert.Empty(t, res.Answer)
	assert.Len(t, steps.descs, 1)
}

func TestExecuteFinalErrorExplained(t *testing.T) {
	operator := &fakeOperator{actions: []*Action{callTool(dispatch.ToolMetadata{Type: dispatch.ProtocolREST}, nil)}}
	steps := &fakeSteps{script: []*dispatch.ResultEnvelope{{
		Success:      false,
		Error:        "HTTP error: 404",
		IsFinalError: true,
		Explanation:  "The order does not exist.",
	}}}
	synth := &fakeSynth{answer: "Sorry, that order does not exist."}

	e := NewEngine(&fakePlanner{plan: []string{"fetch order"}}, operator, synth, NewStaticCatalog(), steps)
	res, err := e.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)

	v, ok := res.Chain.Get("step_1_error")
	require.True(t, ok)
	assert.Equal(t, "The order does not exist.", v)
	// the explanation reaches the synthesizer
	require.Len(t, synth.results, 1)
	assert.Contains(t, synth.results[0], "step_1_error")
	assert.Equal(t, "Sorry, that order does not exist.", res.Answer)
}

func TestExecuteAskUserThenAnswer(t *testing.T) {
	operator := &fakeOperator{actions: []*Action{
		{Action: ActionAskUser, Question: "which order do you mean?"},
		{Action: ActionProvideAnswer, Answer: "Order ord-002 is shipped."},
	}}
	gateway := &fakeGateway{answer: "the latest one"}
	synth := &fakeSynth{answer: "done"}

	e := NewEngine(&fakePlanner{plan: []string{"answer the question"}}, operator, synth, NewStaticCatalog(), nil,
		WithUserGateway(gateway),
	)
	res, err := e.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, []string{"which order do you mean?"}, gateway.questions)
	info, ok := res.Chain.Get("step_1_user_info")
	require.True(t, ok)
	assert.Equal(t, "the latest one", info)
	// the operator re-ran the same step with the new information
	require.Len(t, operator.priors, 2)
	assert.Contains(t, operator.priors[1], "step_1_user_info")
	answer, ok := res.Chain.Get("step_1_result")
	require.True(t, ok)
	assert.Equal(t, "Order ord-002 is shipped.", answer)
}

func TestExecuteSuggestAdditionalStep(t *testing.T) {
	operator := &fakeOperator{actions: []*Action{
		{Action: ActionSuggestStep, Reasoning: "need the user first", NewStep: "fetch the user with id ${step_0_result}"},
		{Action: ActionProvideAnswer, Answer: "user found"},
		{Action: ActionProvideAnswer, Answer: "email found"},
	}}
	synth := &fakeSynth{answer: "done"}

	e := NewEngine(&fakePlanner{plan: []string{"fetch the email"}}, operator, synth, NewStaticCatalog(), nil)
	res, err := e.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	// inserted step runs first, original step second
	require.Len(t, operator.tasks, 3)
	assert.Equal(t, "fetch the email", operator.tasks[0])
	assert.Equal(t, "fetch the user with id ${step_0_result}", operator.tasks[1])
	assert.Equal(t, "fetch the email", operator.tasks[2])
	assert.Len(t, res.Plan, 2)
	assert.Equal(t, []string{"step_1_result", "step_2_result"}, res.Chain.Keys())
}

func TestExecuteReauth(t *testing.T) {
	operator := &fakeOperator{actions: []*Action{
		callTool(dispatch.ToolMetadata{Type: dispatch.ProtocolREST, PathTemplate: "/me"}, nil),
	}}
	steps := &fakeSteps{script: []*dispatch.ResultEnvelope{
		dispatch.NewFailure("HTTP error: 401"),
		dispatch.NewSuccess(map[string]any{"name": "bob"}),
	}}
	login := &dispatch.CallDescriptor{Metadata: dispatch.ToolMetadata{
		Type:         dispatch.ProtocolREST,
		PathTemplate: "/login",
		Method:       "POST",
	}}
	loginDispatcher := &fakeSteps{script: []*dispatch.ResultEnvelope{
		dispatch.NewSuccess(map[string]any{"access_token": "tok-123"}),
	}}
	gateway := &fakeGateway{username: "bob", password: "secret"}
	synth := &fakeSynth{answer: "done"}

	e := NewEngine(&fakePlanner{plan: []string{"fetch my profile"}}, operator, synth, NewStaticCatalog(), steps,
		WithUserGateway(gateway),
		WithReauth(login, (*stepsAsDispatcher)(loginDispatcher)),
	)
	res, err := e.Execute(context.Background(), "who am I?", nil)
	require.NoError(t, err)
	require.True(t, res.Success)

	// login call carried the credentials
	require.Len(t, loginDispatcher.descs, 1)
	assert.Equal(t, map[string]any{"username": "bob", "password": "secret"}, loginDispatcher.descs[0].Payload)
	// the retried step saw the acquired token
	require.Len(t, steps.contexts, 2)
	assert.Equal(t, "tok-123", steps.contexts[1].Session.Token())
}

// stepsAsDispatcher adapts fakeSteps to the Dispatcher interface.
type stepsAsDispatcher fakeSteps

func (f *stepsAsDispatcher) Dispatch(ctx context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope {
	return (*fakeSteps)(f).Run(ctx, desc, callCtx)
}

func TestExecuteBudget(t *testing.T) {
	operator := &fakeOperator{actions: []*Action{
		{Action: ActionAskUser, Question: "again?"},
	}}
	gateway := &fakeGateway{answer: "yes"}

	e := NewEngine(&fakePlanner{plan: []string{"loop forever"}}, operator, &fakeSynth{}, NewStaticCatalog(), nil,
		WithUserGateway(gateway),
		WithMaxSteps(3),
	)
	res, err := e.Execute(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, operator.tasks, 3)
	v, ok := res.Chain.Get("step_1_error")
	require.True(t, ok)
	assert.Contains(t, v.(string), "budget")
}

func TestExecutePlannerError(t *testing.T) {
	e := NewEngine(&fakePlanner{err: errors.New("no plan")}, &fakeOperator{}, &fakeSynth{}, NewStaticCatalog(), nil)
	_, err := e.Execute(context.Background(), "q", nil)
	assert.Error(t, err)
}

func TestExpandRefs(t *testing.T) {
	prior := map[string]any{
		"step_1_result": map[string]any{"userId": float64(5)},
	}
	assert.Equal(t, "fetch the user with id 5",
		expandRefs("fetch the user with id ${step_1_result.userId}", prior))
	assert.Equal(t, "fetch ${nope.missing}",
		expandRefs("fetch ${nope.missing}", prior))
	assert.Equal(t, "plain step", expandRefs("plain step", prior))
}
