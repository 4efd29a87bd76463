package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/effective-security/apibridge/pkg/metricskey"
	"github.com/effective-security/apibridge/projector"
	"github.com/effective-security/xlog"
	"google.golang.org/grpc"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "dispatch")

// Dispatcher routes call descriptors to protocol-specific invokers and
// normalizes their outcomes. It is safe for concurrent use; all per-call
// state lives in the descriptor and CallContext, which are owned by the
// invoking step.
type Dispatcher struct {
	rest    *restInvoker
	graphql *graphqlInvoker
	grpc    *grpcInvoker
	fields  projector.PathOracle
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used by the REST and GraphQL
// invokers, e.g. to impose a deadline around every dispatch.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		d.rest.client = client
		d.graphql.client = client
	}
}

// WithPathOracle enables oracle-driven projection for successful responses
// whose descriptor did not specify extract fields.
func WithPathOracle(oracle projector.PathOracle) Option {
	return func(d *Dispatcher) {
		d.fields = oracle
	}
}

// WithGRPCDialOptions overrides the dial options of the gRPC invoker.
func WithGRPCDialOptions(opts ...grpc.DialOption) Option {
	return func(d *Dispatcher) {
		d.grpc.dialOpts = opts
	}
}

// New creates a Dispatcher. graphqlEndpoint is the fixed GraphQL service
// endpoint; registry resolves gRPC (service, rpc) pairs.
func New(graphqlEndpoint string, registry *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		rest:    &restInvoker{client: http.DefaultClient},
		graphql: &graphqlInvoker{endpoint: graphqlEndpoint, client: http.DefaultClient},
		grpc:    newGRPCInvoker(registry),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch routes the descriptor to its protocol invoker and, on success,
// reduces the response to the requested fields. Every failure is returned as
// a structured envelope; Dispatch never returns an unhandled fault.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *CallDescriptor, callCtx *CallContext) *ResultEnvelope {
	started := time.Now()
	protocol := string(desc.Metadata.Type)
	defer metricskey.PerfDispatch.MeasureSince(started, protocol)

	var res *ResultEnvelope
	switch desc.Metadata.Type {
	case ProtocolREST:
		res = d.rest.invoke(ctx, desc, callCtx)
	case ProtocolGraphQL:
		res = d.graphql.invoke(ctx, desc, callCtx)
	case ProtocolGRPC:
		res = d.grpc.invoke(ctx, desc, callCtx)
	case "":
		res = NewDefect("missing API type in tool metadata")
	default:
		res = NewDefect("unknown API type: %s", desc.Metadata.Type)
	}

	if !res.Success {
		if res.DescriptorDefect() {
			metricskey.StatsDispatchDescriptorDefects.IncrCounter(1, protocol)
		}
		metricskey.StatsDispatchCallsFailed.IncrCounter(1, protocol)
		return res
	}
	metricskey.StatsDispatchCallsSucceeded.IncrCounter(1, protocol)

	d.reduce(ctx, desc, callCtx, res)
	return res
}

// reduce applies explicit or oracle-driven projection to a successful
// response. Projection failures never downgrade a success; the envelope
// keeps the full data.
func (d *Dispatcher) reduce(ctx context.Context, desc *CallDescriptor, callCtx *CallContext, res *ResultEnvelope) {
	protocol := string(desc.Metadata.Type)
	if len(desc.ExtractFields) > 0 {
		originalSize := jsonSize(res.Data)
		reduced := projector.Project(res.Data, desc.ExtractFields)
		reducedSize := jsonSize(reduced)
		if originalSize > reducedSize {
			metricskey.StatsProjectionBytesSaved.IncrCounter(float64(originalSize-reducedSize), protocol)
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "projected_response",
			"original_bytes", originalSize,
			"reduced_bytes", reducedSize,
		)
		res.Data = reduced
		return
	}

	if d.fields != nil && callCtx != nil {
		res.Data = projector.SmartProject(ctx, d.fields, &projector.SuggestRequest{
			Data:      res.Data,
			Task:      callCtx.Task,
			UserQuery: callCtx.UserQuery,
			Plan:      callCtx.Plan,
		})
	}
}

func jsonSize(v any) int {
	bs, _ := json.Marshal(v)
	return len(bs)
}
