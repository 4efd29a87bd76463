package dispatch

import (
	"context"
	"encoding/json"

	"github.com/effective-security/xlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type grpcInvoker struct {
	registry *Registry
	dialOpts []grpc.DialOption
}

func newGRPCInvoker(registry *Registry, opts ...grpc.DialOption) *grpcInvoker {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &grpcInvoker{registry: registry, dialOpts: opts}
}

// invoke resolves (service, rpc) against the registry, maps payload keys onto
// request message fields by name and performs the unary call. A field-name
// mismatch is a planning bug and is reported as a descriptor defect, distinct
// from a server-side failure.
//
// A new channel is opened per call; connection reuse is an optimization the
// registry owner can layer in via dial options, not a correctness concern.
func (g *grpcInvoker) invoke(ctx context.Context, desc *CallDescriptor, _ *CallContext) *ResultEnvelope {
	meta := desc.Metadata
	inv, ok := g.registry.lookup(meta.Service, meta.RPC)
	if !ok {
		return NewDefect("gRPC call not implemented: %s.%s", meta.Service, meta.RPC)
	}
	target := g.registry.target(meta.Service)
	if target == "" {
		return NewDefect("no target configured for gRPC service: %s", meta.Service)
	}

	req := inv.NewRequest()
	payload, err := json.Marshal(desc.Payload)
	if err != nil {
		return NewDefect("failed to encode payload: %s", err.Error())
	}
	// protojson rejects unknown fields, which is exactly the contract:
	// payload keys must match request message fields.
	if err := protojson.Unmarshal(payload, req); err != nil {
		return NewDefect("payload does not match %s.%s request fields: %s", meta.Service, meta.RPC, err.Error())
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"protocol", ProtocolGRPC,
		"service", meta.Service,
		"rpc", meta.RPC,
		"target", target,
	)

	conn, err := grpc.DialContext(ctx, target, g.dialOpts...)
	if err != nil {
		return NewFailure("gRPC connection error: %s", err.Error())
	}
	defer conn.Close()

	resp, err := inv.Invoke(ctx, conn, req)
	if err != nil {
		return NewFailure("gRPC error: %s", status.Convert(err).Message())
	}

	data, envErr := flattenMessage(resp)
	if envErr != nil {
		return NewFailure("failed to decode gRPC response: %s", envErr.Error())
	}
	return NewSuccess(data)
}

// flattenMessage renders a response message as a plain mapping preserving the
// original proto field names.
func flattenMessage(msg proto.Message) (any, error) {
	bs, err := protojson.MarshalOptions{
		UseProtoNames:   true,
		EmitUnpopulated: true,
	}.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(bs, &data); err != nil {
		return nil, err
	}
	return data, nil
}
