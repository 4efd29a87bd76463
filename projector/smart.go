package projector

import (
	"context"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "projector")

// SuggestRequest carries the context a PathOracle needs to pick the minimal
// field set for a response the caller did not project explicitly.
type SuggestRequest struct {
	// Data is the full response payload.
	Data any
	// Task is the natural-language description of the current plan step.
	Task string
	// UserQuery is the user's original request.
	UserQuery string
	// Plan is the full ordered plan, for context.
	Plan []string
}

// PathOracle chooses projection paths for a response when the caller did not
// specify any. Implementations are external decision providers; the projector
// only depends on the structured answer.
type PathOracle interface {
	SuggestPaths(ctx context.Context, req *SuggestRequest) ([]string, error)
}

// SmartProject asks the oracle for a path set and projects data through it.
// Any oracle failure, including an answer that does not parse as a path list,
// falls back to returning data unreduced.
func SmartProject(ctx context.Context, oracle PathOracle, req *SuggestRequest) any {
	if oracle == nil {
		return req.Data
	}
	paths, err := oracle.SuggestPaths(ctx, req)
	if err != nil {
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "smart_projection_failed",
			"err", err.Error(),
		)
		return req.Data
	}
	if len(paths) == 0 {
		return req.Data
	}
	return Project(req.Data, paths)
}
