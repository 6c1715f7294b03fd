package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfigPath = "../../config/oracle.yml"

func TestLoadFileSample(t *testing.T) {
	cfg, err := LoadFile(sampleConfigPath)
	require.NoError(t, err)

	app := cfg.ApplicationConfiguration
	require.Equal(t, "ws://localhost:8546", app.Chain.Endpoint)
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", app.Chain.ContractAddress().Hex())
	require.EqualValues(t, 300000, app.Chain.GasLimit)
	require.Equal(t, 2*time.Minute, app.Chain.TxTimeout)
	require.Equal(t, 10*time.Second, app.Scorer.Timeout)
	require.Equal(t, 12*time.Second, app.Sweeper.Interval)
	require.Equal(t, 1000, app.Store.Capacity)
	require.True(t, app.API.Enabled)
	require.Equal(t, []string{":3001"}, app.API.GetAddresses())
	require.False(t, app.Prometheus.Enabled)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]byte(`
ApplicationConfiguration:
  Chain:
    Endpoint: ws://localhost:8546
    OracleContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    KeyFile: ./key
`))
	require.NoError(t, err)
	app := cfg.ApplicationConfiguration
	require.Equal(t, DefaultApplicationConfiguration().Scorer, app.Scorer)
	require.Equal(t, DefaultApplicationConfiguration().Sweeper, app.Sweeper)
	require.Equal(t, DefaultApplicationConfiguration().Oracle, app.Oracle)
	require.EqualValues(t, DefaultGasLimit, app.Chain.GasLimit)
	require.Equal(t, DefaultTxTimeout, app.Chain.TxTimeout)
}

func TestLoadErrors(t *testing.T) {
	for name, data := range map[string]string{
		"unknown field": `
ApplicationConfiguration:
  Unknown: true`,
		"no chain endpoint": `
ApplicationConfiguration:
  Chain:
    OracleContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    KeyFile: ./key`,
		"bad contract": `
ApplicationConfiguration:
  Chain:
    Endpoint: ws://localhost:8546
    OracleContract: "0x123"
    KeyFile: ./key`,
		"no key for oracle": `
ApplicationConfiguration:
  Chain:
    Endpoint: ws://localhost:8546
    OracleContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"`,
		"bad scorer scheme": `
ApplicationConfiguration:
  Oracle:
    Enabled: false
  Sweeper:
    Enabled: false
  Scorer:
    Endpoint: ftp://example.com`,
		"zero store": `
ApplicationConfiguration:
  Oracle:
    Enabled: false
  Sweeper:
    Enabled: false
  Store:
    Capacity: 0`,
		"bad interval": `
ApplicationConfiguration:
  Oracle:
    Enabled: false
  Sweeper:
    Enabled: false
    Interval: -1s`,
		"api without addresses": `
ApplicationConfiguration:
  Oracle:
    Enabled: false
  Sweeper:
    Enabled: false
  API:
    Enabled: true
    Addresses: []`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadNoChainWhenDisabled(t *testing.T) {
	cfg, err := Load([]byte(`
ApplicationConfiguration:
  Oracle:
    Enabled: false
  Sweeper:
    Enabled: false
`))
	require.NoError(t, err)
	require.Empty(t, cfg.ApplicationConfiguration.Chain.Endpoint)
}
