package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphQLSuccess(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"data": {"getProduct": {"id": "101", "name": "Laptop"}}}`))
	}))
	defer srv.Close()

	inv := &graphqlInvoker{endpoint: srv.URL, client: srv.Client()}
	res := inv.invoke(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{Type: ProtocolGraphQL},
		Payload: map[string]any{
			"query":     "query GetProduct($productId: ID!) { getProduct(productId: $productId) { id name } }",
			"variables": map[string]any{"productId": "101"},
		},
	}, nil)

	require.True(t, res.Success)
	assert.Equal(t, map[string]any{
		"getProduct": map[string]any{"id": "101", "name": "Laptop"},
	}, res.Data)
	assert.Equal(t, map[string]any{"productId": "101"}, gotReq["variables"])
}

func TestGraphQLMissingQuery(t *testing.T) {
	inv := &graphqlInvoker{endpoint: "http://unused", client: http.DefaultClient}
	res := inv.invoke(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{Type: ProtocolGraphQL},
		Payload:  map[string]any{"variables": map[string]any{}},
	}, nil)

	require.False(t, res.Success)
	assert.True(t, res.DescriptorDefect())
	assert.Contains(t, res.Error, "query")
}

func TestGraphQLErrorsArray(t *testing.T) {
	// GraphQL failures arrive with transport status 200; the errors array in
	// the body is what marks the call as failed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "Cannot query field \"description\""}]}`))
	}))
	defer srv.Close()

	inv := &graphqlInvoker{endpoint: srv.URL, client: srv.Client()}
	res := inv.invoke(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{Type: ProtocolGraphQL},
		Payload:  map[string]any{"query": "query { getProduct { description } }"},
	}, nil)

	require.False(t, res.Success)
	assert.False(t, res.DescriptorDefect())
	assert.Contains(t, res.Error, "GraphQL error")
	assert.Contains(t, res.Error, "Cannot query field")

	data, ok := res.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "errors")
}

func TestGraphQLTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	inv := &graphqlInvoker{endpoint: srv.URL, client: srv.Client()}
	res := inv.invoke(context.Background(), &CallDescriptor{
		Metadata: ToolMetadata{Type: ProtocolGraphQL},
		Payload:  map[string]any{"query": "query { ping }"},
	}, nil)

	require.False(t, res.Success)
	assert.Equal(t, "HTTP error: 502", res.Error)
}
