package oracle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/config"
	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/auditoracle/audit-oracle/pkg/rpcclient"
	"github.com/auditoracle/audit-oracle/pkg/services/scorer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Oracle is the on-demand audit request fulfillment service. It receives
	// requests from the chain, scores requested contracts and submits results
	// back to the oracle contract.
	Oracle struct {
		Config

		// started is a status bool to protect from double start/shutdown.
		started *atomic.Bool
		// seen holds recently processed request IDs.
		seen *lru.Cache

		requestCh chan *state.AuditRequest
		stopCh    chan struct{}
		done      chan struct{}

		// ctx is cancelled on shutdown to abort in-flight fulfillments,
		// wg tracks them.
		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup
	}

	// Config contains oracle service parameters.
	Config struct {
		Log        *zap.Logger
		MainCfg    config.Oracle
		TxTimeout  time.Duration
		Scorer     Scorer
		Writer     Writer
		Subscriber Subscriber
		Store      Store
	}

	// Scorer provides contract trust scores.
	Scorer interface {
		Score(ctx context.Context, addr common.Address) (*scorer.Report, error)
	}

	// Writer submits audit results on-chain and waits for their inclusion.
	Writer interface {
		FulfillAudit(ctx context.Context, p rpcclient.FulfillParams) (*types.Receipt, error)
	}

	// Subscriber delivers audit requests from the chain.
	Subscriber interface {
		SubscribeAuditRequests(ctx context.Context, ch chan<- *state.AuditRequest) (event.Subscription, error)
	}

	// Store keeps successful fulfillment results.
	Store interface {
		Add(state.ScanResult)
	}
)

// New returns a new Oracle instance.
func New(cfg Config) (*Oracle, error) {
	if cfg.Scorer == nil || cfg.Writer == nil || cfg.Store == nil {
		return nil, errors.New("oracle requires scorer, writer and store")
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.MainCfg.DedupCacheSize <= 0 {
		cfg.MainCfg.DedupCacheSize = config.DefaultDedupCacheSize
	}
	if cfg.MainCfg.ResubscribeDelay <= 0 {
		cfg.MainCfg.ResubscribeDelay = config.DefaultResubscribeDelay
	}
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = config.DefaultTxTimeout
	}
	seen, err := lru.New(cfg.MainCfg.DedupCacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Oracle{
		Config:    cfg,
		started:   atomic.NewBool(false),
		seen:      seen,
		requestCh: make(chan *state.AuditRequest),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Name returns service name.
func (o *Oracle) Name() string {
	return "oracle"
}

// Start subscribes to audit requests and runs request processing in a
// separate goroutine. The service only starts once, subsequent calls to Start
// are no-op.
func (o *Oracle) Start() {
	if o.Subscriber == nil {
		o.Log.Warn("oracle has no request source, not starting")
		return
	}
	if !o.started.CompareAndSwap(false, true) {
		return
	}
	o.Log.Info("starting oracle service")
	go o.run()
}

// Shutdown stops request processing, aborts in-flight fulfillments and waits
// for them to finish. It can only be called once, the stopped instance can't
// be started again.
func (o *Oracle) Shutdown() {
	if !o.started.CompareAndSwap(true, false) {
		return
	}
	o.Log.Info("stopping oracle service")
	close(o.stopCh)
	<-o.done
	o.cancel()
	o.wg.Wait()
}

// run keeps the request subscription alive until shutdown.
func (o *Oracle) run() {
	defer close(o.done)
	for {
		sub, err := o.Subscriber.SubscribeAuditRequests(o.ctx, o.requestCh)
		if err != nil {
			o.Log.Error("can't subscribe to audit requests", zap.Error(err))
		} else {
			o.Log.Info("subscribed to audit requests")
			if !o.listen(sub) {
				return
			}
		}
		select {
		case <-o.stopCh:
			return
		case <-time.After(o.MainCfg.ResubscribeDelay):
		}
	}
}

// listen dispatches requests from the subscription, it returns false on
// shutdown and true when the subscription is lost.
func (o *Oracle) listen(sub event.Subscription) bool {
	defer sub.Unsubscribe()
	for {
		select {
		case <-o.stopCh:
			return false
		case err := <-sub.Err():
			o.Log.Warn("audit request subscription lost", zap.Error(err))
			return true
		case req := <-o.requestCh:
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.Fulfill(o.ctx, req)
			}()
		}
	}
}
