/*
Package sweeper implements periodic block scanning for newly deployed
contracts. Every tick scans blocks between the last processed one (watermark)
and the current chain head, scores every contract created in them and records
results without submitting anything on-chain.
*/
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/auditoracle/audit-oracle/pkg/services/scorer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Ledger is the chain access needed by the sweeper, rpcclient.Client
	// satisfies it.
	Ledger interface {
		BlockNumber(ctx context.Context) (uint64, error)
		BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
		TransactionSender(ctx context.Context, tx *types.Transaction, block common.Hash, index uint) (common.Address, error)
	}

	// Scorer provides contract trust scores.
	Scorer interface {
		Score(ctx context.Context, addr common.Address) (*scorer.Report, error)
	}

	// Store keeps discovered contract results.
	Store interface {
		Add(state.ScanResult)
	}

	// Config contains sweeper parameters.
	Config struct {
		Log     *zap.Logger
		MainCfg config.Sweeper
		Chain   Ledger
		Scorer  Scorer
		Store   Store
	}

	// Service is the block sweeping service.
	Service struct {
		Config

		// isScanning makes ticks single-flight, overlapping ones are
		// skipped.
		isScanning atomic.Bool
		// watermark is the highest fully processed block, zero means
		// uninitialized.
		watermark atomic.Uint64

		started *atomic.Bool
		ctx     context.Context
		cancel  context.CancelFunc
		stopCh  chan struct{}
		done    chan struct{}
		wg      sync.WaitGroup
	}
)

// New creates a new sweeper.
func New(cfg Config) (*Service, error) {
	if cfg.Chain == nil || cfg.Scorer == nil || cfg.Store == nil {
		return nil, errors.New("sweeper requires chain, scorer and store")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.MainCfg.Interval <= 0 {
		cfg.MainCfg.Interval = config.DefaultSweepInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		Config:  cfg,
		started: atomic.NewBool(false),
		ctx:     ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Name returns service name.
func (s *Service) Name() string {
	return "sweeper"
}

// Watermark returns the highest fully processed block number.
func (s *Service) Watermark() uint64 {
	return s.watermark.Load()
}

// Start runs a tick immediately and then every configured interval. Every
// tick runs in its own goroutine, ticks that fire while the previous one is
// still running are skipped. The service only starts once, subsequent calls
// to Start are no-op.
func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.Log.Info("starting sweeper", zap.Duration("interval", s.MainCfg.Interval))
	go s.run()
}

// Shutdown stops the ticker, cancels the running tick and waits for it to
// finish. It can only be called once, the stopped instance can't be started
// again.
func (s *Service) Shutdown() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	s.Log.Info("stopping sweeper")
	close(s.stopCh)
	<-s.done
	s.cancel()
	s.wg.Wait()
}

func (s *Service) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.MainCfg.Interval)
	defer ticker.Stop()

	s.spawnTick()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.spawnTick()
		}
	}
}

func (s *Service) spawnTick() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Tick(s.ctx)
	}()
}

// Tick performs a single sweep unless another one is in progress, it returns
// false if the tick was skipped.
func (s *Service) Tick(ctx context.Context) bool {
	if !s.isScanning.CompareAndSwap(false, true) {
		s.Log.Debug("previous sweep is still running, skipping tick")
		incSkippedTicks()
		return false
	}
	defer s.isScanning.Store(false)

	s.sweep(ctx, s.Log.With(zap.String("run", uuid.NewString())))
	return true
}

func (s *Service) sweep(ctx context.Context, log *zap.Logger) {
	head, err := s.Chain.BlockNumber(ctx)
	if err != nil {
		log.Warn("can't get chain height", zap.Error(err))
		return
	}

	wm := s.watermark.Load()
	if wm == 0 {
		if head == 0 {
			return
		}
		// No historical backfill, start with the next block.
		wm = head - 1
		s.setWatermark(wm)
		log.Info("sweeper initialized", zap.Uint64("watermark", wm))
	}
	if head <= wm {
		return
	}

	to := head
	if maxBlocks := s.MainCfg.MaxBlocksPerTick; maxBlocks != 0 && head-wm > maxBlocks {
		to = wm + maxBlocks
	}
	log.Debug("sweeping blocks", zap.Uint64("from", wm+1), zap.Uint64("to", to))
	for n := wm + 1; n <= to; n++ {
		if ctx.Err() != nil {
			s.setWatermark(n - 1)
			return
		}
		found, err := s.scanBlock(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				// Block n is incomplete, it's rescanned by the next tick.
				s.setWatermark(n - 1)
				return
			}
			log.Debug("failed to scan block", zap.Uint64("block", n), zap.Error(err))
		}
		if found != 0 {
			log.Info("new contracts found", zap.Uint64("block", n), zap.Int("count", found))
		}
	}
	s.setWatermark(to)
}

// setWatermark never moves the watermark backwards.
func (s *Service) setWatermark(n uint64) {
	for {
		cur := s.watermark.Load()
		if n <= cur {
			return
		}
		if s.watermark.CompareAndSwap(cur, n) {
			setWatermarkMetric(n)
			return
		}
	}
}

// scanBlock records every contract deployed in the given block and returns
// the number of recorded ones. The first chain error stops the block scan.
func (s *Service) scanBlock(ctx context.Context, n uint64) (int, error) {
	b, err := s.Chain.BlockByNumber(ctx, new(big.Int).SetUint64(n))
	if err != nil {
		return 0, fmt.Errorf("failed to get block: %w", err)
	}

	var found int
	for i, tx := range b.Transactions() {
		// Only creation transactions can deploy a contract directly.
		if tx.To() != nil {
			continue
		}
		receipt, err := s.Chain.TransactionReceipt(ctx, tx.Hash())
		if err != nil {
			return found, fmt.Errorf("failed to get receipt for %s: %w", tx.Hash(), err)
		}
		if receipt.Status != types.ReceiptStatusSuccessful || receipt.ContractAddress == (common.Address{}) {
			continue
		}
		deployer, err := s.Chain.TransactionSender(ctx, tx, b.Hash(), uint(i))
		if err != nil {
			return found, fmt.Errorf("failed to get sender of %s: %w", tx.Hash(), err)
		}
		rep, err := s.Scorer.Score(ctx, receipt.ContractAddress)
		if err != nil {
			s.Log.Debug("can't score new contract",
				zap.Stringer("contract", receipt.ContractAddress),
				zap.Error(err))
			continue
		}
		var (
			height = n
			from   = deployer
		)
		s.Store.Add(state.ScanResult{
			ContractAddress:  receipt.ContractAddress,
			Score:            rep.Score,
			IsHoneypot:       rep.IsHoneypot,
			IsMintable:       rep.IsMintable,
			OwnerCanWithdraw: rep.OwnerCanWithdraw,
			ScannedAt:        time.Now().UTC(),
			BlockNumber:      &height,
			DeployerAddress:  &from,
		})
		incDiscovered()
		found++
	}
	return found, nil
}
