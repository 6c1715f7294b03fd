package rpcclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const defaultDialTimeout = 10 * time.Second

// Client is an EVM node RPC client. It's thread-safe and can be used from
// multiple goroutines. All ethclient methods are available directly.
type Client struct {
	*ethclient.Client

	chainID *big.Int
}

// Options defines options for the RPC client. All values are optional.
type Options struct {
	// DialTimeout limits connection establishment and the initial chain ID
	// request, 10 seconds by default.
	DialTimeout time.Duration
}

// New connects to the given endpoint (http(s) or ws(s)) and fetches the chain
// ID. Failure to do either is reported as an error, the node is expected to be
// reachable at start.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("empty RPC endpoint")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	dctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	rc, err := rpc.DialContext(dctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	c := &Client{Client: ethclient.NewClient(rc)}
	c.chainID, err = c.Client.ChainID(dctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	return c, nil
}

// NetworkID returns the chain ID fetched on connection.
func (c *Client) NetworkID() *big.Int {
	return new(big.Int).Set(c.chainID)
}
