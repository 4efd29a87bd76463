package dispatch

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

// Invocation binds one (service, rpc) pair to its generated stub. NewRequest
// produces an empty request message; Invoke performs the unary call over the
// provided connection. Extending the set of callable RPCs is a registration,
// not a code change in the dispatcher.
type Invocation struct {
	NewRequest func() proto.Message
	Invoke     func(ctx context.Context, conn grpc.ClientConnInterface, req proto.Message) (proto.Message, error)
}

// Registry maps (service, rpc) pairs to their stubs. It is built once at
// initialization and read-only afterwards.
type Registry struct {
	entries map[string]Invocation
	targets map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Invocation),
		targets: make(map[string]string),
	}
}

// Register adds an RPC under service at the given dial target.
func (r *Registry) Register(service, rpc, target string, inv Invocation) *Registry {
	r.entries[service+"."+rpc] = inv
	r.targets[service] = target
	return r
}

// SetTarget overrides the dial target of a service, e.g. from deployment
// configuration.
func (r *Registry) SetTarget(service, target string) *Registry {
	r.targets[service] = target
	return r
}

func (r *Registry) lookup(service, rpc string) (Invocation, bool) {
	inv, ok := r.entries[service+"."+rpc]
	return inv, ok
}

func (r *Registry) target(service string) string {
	return r.targets[service]
}
