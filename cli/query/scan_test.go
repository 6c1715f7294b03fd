package query

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

const testAddr = "0x8d12A197cB00D4747a1fe03395095ce2A5CC6819"

func init() {
	// Exit errors are checked by tests, the process must survive them.
	cli.OsExiter = func(int) {}
}

func newTestApp(out *bytes.Buffer) *cli.App {
	app := cli.NewApp()
	app.Commands = NewCommands()
	app.Writer = out
	app.ErrWriter = out
	return app
}

func TestScanCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token_security/56", r.URL.Path)
		assert.Equal(t, strings.ToLower(testAddr), r.URL.Query().Get("contract_addresses"))
		_, _ = w.Write([]byte(`{"code":1,"message":"OK","result":{"` + strings.ToLower(testAddr) + `":{
			"is_honeypot":"0","is_mintable":"1","owner_change_balance":"0","is_open_source":"1",
			"is_proxy":"0","buy_tax":"0","sell_tax":"0"}}}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"audit-oracle", "scan",
		"--scorer-endpoint", srv.URL,
		"--chain-id", "56",
		"--json",
		testAddr})
	require.NoError(t, err)

	var res state.ScanResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Equal(t, common.HexToAddress(testAddr), res.ContractAddress)
	require.EqualValues(t, 85, res.Score)
	require.True(t, res.IsMintable)
	require.False(t, res.IsHoneypot)
	require.False(t, res.HasCertificate)
	require.Nil(t, res.BlockNumber)
}

func TestScanCommandText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":1,"message":"OK","result":{"` + strings.ToLower(testAddr) + `":{
			"is_honeypot":"1","is_mintable":"0","can_take_back_ownership":"1","is_open_source":"1"}}}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"audit-oracle", "scan", "--scorer-endpoint", srv.URL, testAddr})
	require.NoError(t, err)
	require.Contains(t, out.String(), "Contract: "+common.HexToAddress(testAddr).Hex()+"\n")
	require.Contains(t, out.String(), "Score: 0/100\n")
	require.Contains(t, out.String(), "Honeypot: yes\n")
	require.Contains(t, out.String(), "Mintable: no\n")
	require.Contains(t, out.String(), "Owner can withdraw: yes\n")
}

func TestScanCommandErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	for name, args := range map[string][]string{
		"no address":      {"audit-oracle", "scan"},
		"two addresses":   {"audit-oracle", "scan", testAddr, testAddr},
		"bad address":     {"audit-oracle", "scan", "0x1234"},
		"missing config":  {"audit-oracle", "scan", "--config-file", "/nonexistent/oracle.yml", testAddr},
		"unavailable API": {"audit-oracle", "scan", "--scorer-endpoint", srv.URL, testAddr},
	} {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			err := newTestApp(&out).Run(args)
			require.Error(t, err)
			var ec cli.ExitCoder
			require.ErrorAs(t, err, &ec)
			require.Equal(t, 1, ec.ExitCode())
		})
	}
}
