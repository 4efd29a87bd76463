// Package oracle implements the LLM-backed strategy providers: the recovery
// advisor, the projection path suggester, the strategic planner, the per-step
// operator and the final answer synthesizer. Each provider hides its model
// behind the narrow interface its consumer defines; malformed model output
// always degrades to the safest answer instead of propagating.
package oracle

import (
	"context"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/apibridge/pkg/metricskey"
	"github.com/effective-security/gogentic/pkg/llms"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "oracle")

// generate runs one blocking completion and returns the raw text of the first
// choice. Metrics are tagged with the oracle name, not the model.
func generate(ctx context.Context, model llms.Model, name string, messages ...llms.Message) ([]byte, error) {
	started := time.Now()
	defer metricskey.PerfOracleCall.MeasureSince(started, name)

	resp, err := model.GenerateContent(ctx, messages)
	if err != nil {
		metricskey.StatsOracleCallsFailed.IncrCounter(1, name)
		return nil, errors.Wrapf(err, "failed to generate content from LLM")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		metricskey.StatsOracleCallsFailed.IncrCounter(1, name)
		return nil, errors.Newf("oracle %s: LLM returned empty response", name)
	}

	content := resp.Choices[0].Content
	logger.ContextKV(ctx, xlog.DEBUG,
		"oracle", name,
		"model", model.GetName(),
		"response", slices.StringUpto(content, 64),
	)
	return []byte(content), nil
}

func parseFailure(ctx context.Context, name string, err error) {
	metricskey.StatsOracleParseErrors.IncrCounter(1, name)
	logger.ContextKV(ctx, xlog.WARNING,
		"oracle", name,
		"status", "parse_failed",
		"err", err.Error(),
	)
}

// schemaJSON renders the JSON schema of t for embedding into a prompt.
func schemaJSON(t any) string {
	r := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	sc := r.ReflectFromType(reflect.TypeOf(t))
	bs, err := sc.MarshalJSON()
	if err != nil {
		logger.KV(xlog.ERROR, "status", "schema_marshal_failed", "err", err.Error())
		return "{}"
	}
	return string(bs)
}
