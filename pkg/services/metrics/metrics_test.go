package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPrometheusService(t *testing.T) {
	s := NewPrometheusService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"localhost:0"},
	}, zaptest.NewLogger(t))
	require.Equal(t, "Prometheus", s.Name())
	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	t.Cleanup(s.ShutDown)

	addrs := s.Addresses()
	require.Len(t, addrs, 1)
	resp, err := http.Get("http://" + addrs[0] + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "go_goroutines")
}

func TestDisabledService(t *testing.T) {
	s := NewPprofService(config.BasicService{Addresses: []string{"localhost:0"}}, zaptest.NewLogger(t))
	require.NoError(t, s.Start())
	require.Equal(t, []string{"localhost:0"}, s.Addresses())
	s.ShutDown()
}

func TestNilLogger(t *testing.T) {
	require.Nil(t, NewPrometheusService(config.BasicService{}, nil))
	require.Nil(t, NewPprofService(config.BasicService{}, nil))
}

func TestListenError(t *testing.T) {
	s := NewPprofService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"bad address"},
	}, zaptest.NewLogger(t))
	require.Error(t, s.Start())
}
