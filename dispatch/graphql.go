package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/effective-security/xlog"
)

type graphqlInvoker struct {
	endpoint string
	client   *http.Client
}

// invoke posts a GraphQL document to the configured endpoint. GraphQL
// failures are payload-shaped, not status-coded: a 200 response whose body
// carries a top-level "errors" array is a failure.
func (g *graphqlInvoker) invoke(ctx context.Context, desc *CallDescriptor, callCtx *CallContext) *ResultEnvelope {
	query, _ := desc.Payload["query"].(string)
	if query == "" {
		return NewDefect("GraphQL payload did not contain a 'query'")
	}
	variables, _ := desc.Payload["variables"].(map[string]any)

	bs, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return NewDefect("failed to encode GraphQL request: %s", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(bs))
	if err != nil {
		return NewDefect("failed to build request: %s", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if callCtx != nil && callCtx.Session != nil {
		if token := callCtx.Session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"protocol", ProtocolGraphQL,
		"endpoint", g.endpoint,
	)

	resp, err := g.client.Do(req)
	if err != nil {
		return NewFailure("HTTP connection error: %s", err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewFailure("failed to read response: %s", err.Error())
	}
	if resp.StatusCode >= 400 {
		return &ResultEnvelope{
			Error:        fmt.Sprintf("HTTP error: %d", resp.StatusCode),
			RawErrorBody: string(raw),
		}
	}

	var parsed struct {
		Data   any             `json:"data"`
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return NewFailure("failed to decode response: %s", err.Error())
	}
	if len(parsed.Errors) > 0 && string(parsed.Errors) != "null" {
		// Keep the whole body as data so the classifier can see the
		// errors array shape.
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		return &ResultEnvelope{
			Error:        fmt.Sprintf("GraphQL error: %s", string(parsed.Errors)),
			Data:         body,
			RawErrorBody: string(raw),
		}
	}
	return NewSuccess(parsed.Data)
}
