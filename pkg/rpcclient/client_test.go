package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(t *testing.T, chainID string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "eth_chainId", req.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"` + chainID + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	srv := newTestNode(t, "0x539")

	c, err := New(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.EqualValues(t, 1337, c.NetworkID().Int64())

	// The returned value is a copy.
	c.NetworkID().SetInt64(1)
	require.EqualValues(t, 1337, c.NetworkID().Int64())
}

func TestNewErrors(t *testing.T) {
	t.Run("empty endpoint", func(t *testing.T) {
		_, err := New(context.Background(), "", Options{})
		require.Error(t, err)
	})
	t.Run("bad scheme", func(t *testing.T) {
		_, err := New(context.Background(), "ftp://localhost", Options{})
		require.Error(t, err)
	})
	t.Run("unreachable", func(t *testing.T) {
		_, err := New(context.Background(), "http://127.0.0.1:1", Options{})
		require.Error(t, err)
	})
	t.Run("bad chain ID", func(t *testing.T) {
		srv := newTestNode(t, "not-a-number")
		_, err := New(context.Background(), srv.URL, Options{})
		require.Error(t, err)
	})
}
