package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/auditoracle/audit-oracle/pkg/rpcclient"
	"github.com/auditoracle/audit-oracle/pkg/services/scorer"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Fulfill processes a single audit request: scores the target, submits the
// result on-chain and stores it once the transaction succeeds. Requests with
// already seen IDs are dropped. Failures are logged and never returned, a
// reverted transaction is not retried.
func (o *Oracle) Fulfill(ctx context.Context, req *state.AuditRequest) {
	if req == nil || req.RequestID == nil {
		return
	}
	log := o.Log.With(zap.Stringer("request", req.RequestID))
	if seen, _ := o.seen.ContainsOrAdd(req.RequestID.String(), struct{}{}); seen {
		log.Debug("skipping already processed request")
		incFulfillment(resultDuplicate)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("request processing panicked", zap.Any("panic", r))
			incFulfillment(resultError)
		}
	}()

	log.Info("processing audit request",
		zap.Stringer("target", req.Target),
		zap.Stringer("requester", req.Requester),
		zap.Stringer("fee", req.Fee),
		zap.Uint64("block", req.BlockNumber))

	receipt, rep, err := o.processRequest(ctx, req)
	switch {
	case err != nil:
		log.Error("can't fulfill request", zap.Error(err))
		incFulfillment(resultError)
	case receipt.Status != types.ReceiptStatusSuccessful:
		log.Error("fulfillment transaction reverted",
			zap.Stringer("tx", receipt.TxHash),
			zap.Stringer("height", receipt.BlockNumber))
		incFulfillment(resultReverted)
	default:
		o.Store.Add(state.ScanResult{
			ContractAddress:  req.Target,
			Score:            rep.Score,
			IsHoneypot:       rep.IsHoneypot,
			IsMintable:       rep.IsMintable,
			OwnerCanWithdraw: rep.OwnerCanWithdraw,
			ScannedAt:        time.Now().UTC(),
			HasCertificate:   true,
		})
		log.Info("request fulfilled",
			zap.Uint8("score", rep.Score),
			zap.Stringer("tx", receipt.TxHash))
		incFulfillment(resultSuccess)
	}
}

func (o *Oracle) processRequest(ctx context.Context, req *state.AuditRequest) (*types.Receipt, *scorer.Report, error) {
	rep, err := o.Scorer.Score(ctx, req.Target)
	if err != nil {
		if !errors.Is(err, scorer.ErrUnavailable) {
			return nil, nil, err
		}
		o.Log.Warn("scorer unavailable, using fallback report",
			zap.Stringer("request", req.RequestID),
			zap.Error(err))
		incFallback()
		fallback := scorer.FallbackReport
		rep = &fallback
	}

	wctx, cancel := context.WithTimeout(ctx, o.TxTimeout)
	defer cancel()
	receipt, err := o.Writer.FulfillAudit(wctx, rpcclient.FulfillParams{
		RequestID:        req.RequestID,
		Score:            rep.Score,
		IsHoneypot:       rep.IsHoneypot,
		IsMintable:       rep.IsMintable,
		OwnerCanWithdraw: rep.OwnerCanWithdraw,
	})
	if err != nil {
		return nil, nil, err
	}
	if receipt == nil {
		return nil, nil, fmt.Errorf("no receipt for request %s", req.RequestID)
	}
	return receipt, rep, nil
}
