package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/effective-security/xlog"
)

type restInvoker struct {
	client *http.Client
}

var mutatingMethods = map[string]bool{
	http.MethodPost:  true,
	http.MethodPut:   true,
	http.MethodPatch: true,
}

// invoke executes a REST call described by the descriptor metadata. Payload
// keys that appear as {key} placeholders in the path template become path
// parameters; the rest become body fields for mutating methods and query
// parameters otherwise.
func (r *restInvoker) invoke(ctx context.Context, desc *CallDescriptor, callCtx *CallContext) *ResultEnvelope {
	meta := desc.Metadata
	method := strings.ToUpper(meta.Method)
	if method == "" {
		method = http.MethodGet
	}

	path := meta.PathTemplate
	query := url.Values{}
	body := map[string]any{}

	for key, value := range desc.Payload {
		placeholder := "{" + key + "}"
		switch {
		case strings.Contains(meta.PathTemplate, placeholder):
			path = strings.ReplaceAll(path, placeholder, fmt.Sprintf("%v", value))
		case mutatingMethods[method]:
			body[key] = value
		default:
			query.Set(key, fmt.Sprintf("%v", value))
		}
	}

	if open := strings.IndexByte(path, '{'); open >= 0 {
		missing := path[open:]
		if close := strings.IndexByte(missing, '}'); close >= 0 {
			missing = missing[1:close]
		}
		return NewDefect("missing payload parameter for path: %s", missing)
	}

	endpoint := meta.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if len(body) > 0 {
		bs, err := json.Marshal(body)
		if err != nil {
			return NewDefect("failed to encode request body: %s", err.Error())
		}
		reqBody = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return NewDefect("failed to build request: %s", err.Error())
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if callCtx != nil && callCtx.Session != nil {
		if token := callCtx.Session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"protocol", ProtocolREST,
		"method", method,
		"url", endpoint,
	)

	resp, err := r.client.Do(req)
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

	if resp.StatusCode == http.StatusNoContent {
		return NewSuccess("Operation completed successfully (No Content).")
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return NewFailure("failed to decode response: %s", err.Error())
	}
	return NewSuccess(data)
}
