package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/apibridge/projector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchUnknownProtocol(t *testing.T) {
	d := New("http://unused", NewRegistry())

	res := d.Dispatch(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{Type: "soap"},
	}, nil)
	require.False(t, res.Success)
	assert.True(t, res.DescriptorDefect())
	assert.Contains(t, res.Error, "unknown API type")

	res = d.Dispatch(context.Background(), &CallDescriptor{}, nil)
	require.False(t, res.Success)
	assert.Contains(t, res.Error, "missing API type")
}

func TestDispatchProjectsExtractFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user": {"email": "bob@example.com", "address": {"street": "x"}}, "noise": [1,2,3]}`))
	}))
	defer srv.Close()

	d := New("http://unused", NewRegistry(), WithHTTPClient(srv.Client()))
	res := d.Dispatch(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{
			Type:         ProtocolREST,
			BaseURL:      srv.URL,
			PathTemplate: "/users/{id}",
			Method:       "GET",
		},
		Payload:       map[string]any{"id": float64(5)},
		ExtractFields: []string{"user.email"},
	}, nil)

	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"user_email": "bob@example.com"}, res.Data)
}

type suggestAll struct{ paths []string }

func (s *suggestAll) SuggestPaths(context.Context, *projector.SuggestRequest) ([]string, error) {
	return s.paths, nil
}

func TestDispatchOracleProjection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name": "widget", "weight": 3, "noise": "x"}`))
	}))
	defer srv.Close()

	d := New("http://unused", NewRegistry(),
		WithHTTPClient(srv.Client()),
		WithPathOracle(&suggestAll{paths: []string{"name", "weight"}}),
	)
	res := d.Dispatch(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{
			Type:         ProtocolREST,
			BaseURL:      srv.URL,
			PathTemplate: "/products/{id}",
			Method:       "GET",
		},
		Payload: map[string]any{"id": "101"},
	}, &CallContext{Task: "how much does the widget weigh?"})

	require.True(t, res.Success)
	assert.Equal(t, map[string]any{"name": "widget", "weight": float64(3)}, res.Data)
}

func TestDescriptorWireShape(t *testing.T) {
	raw := `{
		"tool_metadata": {
			"type": "rest",
			"base_url": "http://rest_server:8001",
			"path_template": "/orders/{order_id}",
			"method": "GET"
		},
		"payload": {"order_id": "ord-002"},
		"extract_fields": ["status", "items[].sku"]
	}`

	var desc CallDescriptor
	require.NoError(t, json.Unmarshal([]byte(raw), &desc))
	assert.Equal(t, ProtocolREST, desc.Metadata.Type)
	assert.Equal(t, "/orders/{order_id}", desc.Metadata.PathTemplate)
	assert.Equal(t, map[string]any{"order_id": "ord-002"}, desc.Payload)
	assert.Equal(t, []string{"status", "items[].sku"}, desc.ExtractFields)
}

func TestEnvelopeWireShape(t *testing.T) {
	env := &ResultEnvelope{
		Success:      false,
		Error:        "HTTP error: 404",
		IsFinalError: true,
		Explanation:  "The order does not exist.",
	}
	bs, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": "HTTP error: 404",
		"is_final_error": true,
		"explanation": "The order does not exist."
	}`, string(bs))
}
