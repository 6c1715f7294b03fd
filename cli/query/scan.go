package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/auditoracle/audit-oracle/cli/options"
	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/auditoracle/audit-oracle/pkg/services/scorer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

// NewCommands returns 'scan' command.
func NewCommands() []cli.Command {
	return []cli.Command{{
		Name:      "scan",
		Usage:     "Score a single contract without submitting anything on-chain",
		UsageText: "audit-oracle scan [--config-file file] [--scorer-endpoint url] [--chain-id id] [--json] <address>",
		Action:    scanContract,
		Flags: []cli.Flag{
			options.ConfigFile,
			options.Debug,
			options.Timeout,
			cli.StringFlag{
				Name:  "scorer-endpoint",
				Usage: "security data API endpoint (overrides configuration)",
			},
			cli.Uint64Flag{
				Name:  "chain-id",
				Usage: "chain ID used for security data requests (overrides configuration)",
			},
			cli.BoolFlag{
				Name:  "json",
				Usage: "print the result as JSON",
			},
		},
	}}
}

func scanContract(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 1 {
		return cli.NewExitError(errors.New("exactly one contract address is expected"), 1)
	}
	if !common.IsHexAddress(args[0]) {
		return cli.NewExitError(fmt.Errorf("invalid contract address: %s", args[0]), 1)
	}
	addr := common.HexToAddress(args[0])

	// Configuration file is optional here, nothing except the scorer
	// section is used.
	cfg := config.DefaultApplicationConfiguration()
	if ctx.IsSet("config-file") {
		c, err := options.GetConfigFromContext(ctx)
		if err != nil {
			return cli.NewExitError(err, 1)
		}
		cfg = c.ApplicationConfiguration
	}
	if ep := ctx.String("scorer-endpoint"); ep != "" {
		cfg.Scorer.Endpoint = ep
	}
	if id := ctx.Uint64("chain-id"); id != 0 {
		cfg.Scorer.ChainID = id
	}
	// Command output goes to stdout, logs are only shown for debugging.
	cfg.LogPath = ""
	if !ctx.Bool("debug") {
		cfg.LogLevel = "error"
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	sc, err := scorer.New(scorer.Config{
		Log:      log.With(zap.String("service", "scorer")),
		Endpoint: cfg.Scorer.Endpoint,
		ChainID:  cfg.Scorer.ChainID,
		Timeout:  cfg.Scorer.Timeout,
		APIKey:   cfg.Scorer.APIKey,
	})
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()
	rep, err := sc.Score(gctx, addr)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	res := state.ScanResult{
		ContractAddress:  addr,
		Score:            rep.Score,
		IsHoneypot:       rep.IsHoneypot,
		IsMintable:       rep.IsMintable,
		OwnerCanWithdraw: rep.OwnerCanWithdraw,
		ScannedAt:        time.Now().UTC(),
	}
	if !ctx.Bool("json") {
		printReport(ctx.App.Writer, res)
		return nil
	}
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	_, _ = fmt.Fprintln(ctx.App.Writer, string(b))
	return nil
}
