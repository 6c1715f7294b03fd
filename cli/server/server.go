package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/auditoracle/audit-oracle/cli/options"
	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/auditoracle/audit-oracle/pkg/core/storage"
	"github.com/auditoracle/audit-oracle/pkg/rpcclient"
	"github.com/auditoracle/audit-oracle/pkg/services/apisrv"
	"github.com/auditoracle/audit-oracle/pkg/services/metrics"
	"github.com/auditoracle/audit-oracle/pkg/services/oracle"
	"github.com/auditoracle/audit-oracle/pkg/services/scorer"
	"github.com/auditoracle/audit-oracle/pkg/services/sweeper"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NewCommands returns 'node' command.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:      "node",
			Usage:     "Start the audit oracle",
			UsageText: "audit-oracle node [--config-file file] [--debug]",
			Action:    startServer,
			Flags:     []cli.Flag{options.ConfigFile, options.Debug},
		},
	}
}

// services groups everything started by the node command.
type services struct {
	client  *rpcclient.Client
	oracle  *oracle.Oracle
	sweeper *sweeper.Service
	api     *apisrv.Server
	monitor []*metrics.Service
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

func startServer(ctx *cli.Context) error {
	if len(ctx.Args()) != 0 {
		return cli.NewExitError(errors.New("unexpected arguments"), 1)
	}
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.ApplicationConfiguration)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	defer func() { _ = log.Sync() }()

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	errChan := make(chan error, 1)
	srv, err := initServices(grace, cfg.ApplicationConfiguration, log, errChan)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	var g errgroup.Group
	g.Go(srv.api.Start)
	for _, m := range srv.monitor {
		g.Go(m.Start)
	}
	if err := g.Wait(); err != nil {
		srv.shutdown(log)
		return cli.NewExitError(fmt.Errorf("failed to start services: %w", err), 1)
	}
	if srv.oracle != nil {
		srv.oracle.Start()
	}
	if srv.sweeper != nil {
		srv.sweeper.Start()
	}
	log.Info("audit oracle started", zap.String("version", config.Version))

	var exitErr error
	select {
	case err := <-errChan:
		log.Error("service failed", zap.Error(err))
		exitErr = cli.NewExitError(err, 1)
	case <-grace.Done():
		log.Info("shutting down")
	}
	srv.shutdown(log)
	return exitErr
}

// initServices creates all configured services. Chain connection failure is
// fatal here, nothing is retried at startup.
func initServices(ctx context.Context, cfg config.ApplicationConfiguration, log *zap.Logger, errChan chan<- error) (*services, error) {
	var srv = new(services)

	store := storage.NewScanStore(cfg.Store.Capacity)
	sc, err := scorer.New(scorer.Config{
		Log:      log.With(zap.String("service", "scorer")),
		Endpoint: cfg.Scorer.Endpoint,
		ChainID:  cfg.Scorer.ChainID,
		Timeout:  cfg.Scorer.Timeout,
		APIKey:   cfg.Scorer.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create scorer: %w", err)
	}

	if cfg.Oracle.Enabled || cfg.Sweeper.Enabled {
		srv.client, err = rpcclient.New(ctx, cfg.Chain.Endpoint, rpcclient.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Chain.Endpoint, err)
		}
		log.Info("connected to chain",
			zap.String("endpoint", cfg.Chain.Endpoint),
			zap.Stringer("chainID", srv.client.NetworkID()))
	}

	if cfg.Oracle.Enabled {
		key, err := crypto.LoadECDSA(cfg.Chain.KeyFile)
		if err != nil {
			srv.client.Close()
			return nil, fmt.Errorf("can't load oracle key: %w", err)
		}
		contract, err := rpcclient.NewOracleContract(cfg.Chain.ContractAddress(), srv.client, key, srv.client.NetworkID(), cfg.Chain.GasLimit)
		if err != nil {
			srv.client.Close()
			return nil, fmt.Errorf("can't bind oracle contract: %w", err)
		}
		log.Info("oracle account", zap.Stringer("address", contract.Sender()))
		srv.oracle, err = oracle.New(oracle.Config{
			Log:        log.With(zap.String("service", "oracle")),
			MainCfg:    cfg.Oracle,
			TxTimeout:  cfg.Chain.TxTimeout,
			Scorer:     sc,
			Writer:     contract,
			Subscriber: contract,
			Store:      store,
		})
		if err != nil {
			srv.client.Close()
			return nil, fmt.Errorf("can't create oracle: %w", err)
		}
	}

	var wm apisrv.Watermarker
	if cfg.Sweeper.Enabled {
		srv.sweeper, err = sweeper.New(sweeper.Config{
			Log:     log.With(zap.String("service", "sweeper")),
			MainCfg: cfg.Sweeper,
			Chain:   srv.client,
			Scorer:  sc,
			Store:   store,
		})
		if err != nil {
			srv.client.Close()
			return nil, fmt.Errorf("can't create sweeper: %w", err)
		}
		wm = srv.sweeper
	}

	srv.api = apisrv.New(cfg.API, store, wm, log, errChan)
	srv.monitor = []*metrics.Service{
		metrics.NewPrometheusService(cfg.Prometheus, log),
		metrics.NewPprofService(cfg.Pprof, log),
	}
	return srv, nil
}

func (s *services) shutdown(log *zap.Logger) {
	if s.sweeper != nil {
		s.sweeper.Shutdown()
	}
	if s.oracle != nil {
		s.oracle.Shutdown()
	}
	s.api.Shutdown()
	for _, m := range s.monitor {
		m.ShutDown()
	}
	if s.client != nil {
		s.client.Close()
	}
	log.Info("audit oracle stopped")
}
