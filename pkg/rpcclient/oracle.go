package rpcclient

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
)

// OracleABI is the part of the audit oracle contract ABI used by the service.
const OracleABI = `[
	{
		"type": "event",
		"name": "AuditRequested",
		"anonymous": false,
		"inputs": [
			{"name": "requestId", "type": "uint256", "indexed": true},
			{"name": "target", "type": "address", "indexed": true},
			{"name": "requester", "type": "address", "indexed": false},
			{"name": "fee", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "function",
		"name": "fulfillAudit",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "requestId", "type": "uint256"},
			{"name": "score", "type": "uint8"},
			{"name": "isHoneypot", "type": "bool"},
			{"name": "isMintable", "type": "bool"},
			{"name": "ownerCanWithdraw", "type": "bool"}
		],
		"outputs": []
	}
]`

const (
	auditRequestedEvent = "AuditRequested"
	fulfillAuditMethod  = "fulfillAudit"
)

var parsedOracleABI = mustParseABI(OracleABI)

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

type (
	// Backend is the chain access needed by OracleContract, Client satisfies
	// it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
	}

	// OracleContract is a binding to the audit oracle contract, it submits
	// fulfillments signed with the oracle key and receives audit requests.
	OracleContract struct {
		address  common.Address
		backend  Backend
		contract *bind.BoundContract

		// sendMtx serializes transaction sending, so that pending nonces
		// are fetched after the previous transaction is in the pool.
		sendMtx sync.Mutex
		opts    bind.TransactOpts
	}

	// FulfillParams is the audit result submitted to the contract.
	FulfillParams struct {
		RequestID        *big.Int
		Score            uint8
		IsHoneypot       bool
		IsMintable       bool
		OwnerCanWithdraw bool
	}

	auditRequested struct {
		RequestId *big.Int //nolint:revive,stylecheck // Named after the ABI argument.
		Target    common.Address
		Requester common.Address
		Fee       *big.Int
	}
)

// NewOracleContract creates a contract binding. Transactions are signed with
// the given key for the given chain ID and use a fixed gas limit.
func NewOracleContract(address common.Address, backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64) (*OracleContract, error) {
	if key == nil {
		return nil, errors.New("no signing key")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = gasLimit
	return &OracleContract{
		address:  address,
		backend:  backend,
		contract: bind.NewBoundContract(address, parsedOracleABI, backend, backend, backend),
		opts:     *opts,
	}, nil
}

// Address returns the contract address.
func (c *OracleContract) Address() common.Address {
	return c.address
}

// Sender returns the address fulfillment transactions are sent from.
func (c *OracleContract) Sender() common.Address {
	return c.opts.From
}

// FulfillAudit sends fulfillAudit transaction and waits for it to be included
// into a block. The receipt is returned as is, so a reverted transaction is
// not an error here, check receipt status. Awaiting is bounded by ctx only.
func (c *OracleContract) FulfillAudit(ctx context.Context, p FulfillParams) (*types.Receipt, error) {
	tx, err := c.send(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to send fulfillment: %w", err)
	}
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to await %s: %w", tx.Hash(), err)
	}
	return receipt, nil
}

func (c *OracleContract) send(ctx context.Context, p FulfillParams) (*types.Transaction, error) {
	c.sendMtx.Lock()
	defer c.sendMtx.Unlock()

	opts := c.opts
	opts.Context = ctx
	return c.contract.Transact(&opts, fulfillAuditMethod,
		p.RequestID, p.Score, p.IsHoneypot, p.IsMintable, p.OwnerCanWithdraw)
}

// SubscribeAuditRequests delivers every AuditRequested event of the contract
// to ch until the subscription is cancelled or fails. Malformed events end the
// subscription with an error.
func (c *OracleContract) SubscribeAuditRequests(ctx context.Context, ch chan<- *state.AuditRequest) (event.Subscription, error) {
	logs, sub, err := c.contract.WatchLogs(&bind.WatchOpts{Context: ctx}, auditRequestedEvent)
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}
				req, err := c.ParseAuditRequested(l)
				if err != nil {
					return err
				}
				select {
				case ch <- req:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// ParseAuditRequested decodes AuditRequested event from the log.
func (c *OracleContract) ParseAuditRequested(l types.Log) (*state.AuditRequest, error) {
	var ev auditRequested
	if err := c.contract.UnpackLog(&ev, auditRequestedEvent, l); err != nil {
		return nil, fmt.Errorf("bad %s event in %s: %w", auditRequestedEvent, l.TxHash, err)
	}
	return &state.AuditRequest{
		RequestID:   ev.RequestId,
		Target:      ev.Target,
		Requester:   ev.Requester,
		Fee:         ev.Fee,
		TxHash:      l.TxHash,
		BlockNumber: l.BlockNumber,
	}, nil
}
