package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults for the oracle configuration sections.
const (
	DefaultGasLimit         = 300_000
	DefaultTxTimeout        = 2 * time.Minute
	DefaultScorerEndpoint   = "https://api.gopluslabs.io/api/v1"
	DefaultScorerTimeout    = 10 * time.Second
	DefaultDedupCacheSize   = 4096
	DefaultResubscribeDelay = 5 * time.Second
	DefaultSweepInterval    = 12 * time.Second
	DefaultStoreCapacity    = 1000
	DefaultMaxRecentLimit   = 100
)

type (
	// Chain describes the connection to the blockchain and the oracle contract.
	Chain struct {
		// Endpoint is an RPC node URL, websocket one is required for the
		// event subscription.
		Endpoint       string `yaml:"Endpoint"`
		OracleContract string `yaml:"OracleContract"`
		// KeyFile is a path to the file with the hex-encoded private key used
		// to sign fulfillment transactions.
		KeyFile   string        `yaml:"KeyFile"`
		GasLimit  uint64        `yaml:"GasLimit"`
		TxTimeout time.Duration `yaml:"TxTimeout"`
	}

	// Scorer is the risk-analysis service configuration.
	Scorer struct {
		Endpoint string        `yaml:"Endpoint"`
		ChainID  uint64        `yaml:"ChainID"`
		Timeout  time.Duration `yaml:"Timeout"`
		APIKey   string        `yaml:"APIKey"`
	}

	// Oracle is the on-demand request fulfillment configuration.
	Oracle struct {
		Enabled          bool          `yaml:"Enabled"`
		DedupCacheSize   int           `yaml:"DedupCacheSize"`
		ResubscribeDelay time.Duration `yaml:"ResubscribeDelay"`
	}

	// Sweeper is the block sweeping configuration.
	Sweeper struct {
		Enabled  bool          `yaml:"Enabled"`
		Interval time.Duration `yaml:"Interval"`
		// MaxBlocksPerTick limits the number of blocks scanned per tick, 0
		// means no limit.
		MaxBlocksPerTick uint64 `yaml:"MaxBlocksPerTick"`
	}

	// Store is the scan result store configuration.
	Store struct {
		Capacity int `yaml:"Capacity"`
	}

	// API is the read API service configuration.
	API struct {
		BasicService   `yaml:",inline"`
		MaxRecentLimit int `yaml:"MaxRecentLimit"`
	}
)

// Validate checks Chain for internal consistency.
func (c *Chain) Validate() error {
	if c.Endpoint == "" {
		return errors.New("no Endpoint")
	}
	if !common.IsHexAddress(c.OracleContract) {
		return fmt.Errorf("invalid OracleContract address '%s'", c.OracleContract)
	}
	if c.GasLimit == 0 {
		return errors.New("zero GasLimit")
	}
	if c.TxTimeout <= 0 {
		return fmt.Errorf("invalid TxTimeout: %s", c.TxTimeout)
	}
	return nil
}

// ContractAddress returns the oracle contract address, it's only meaningful
// after successful validation.
func (c *Chain) ContractAddress() common.Address {
	return common.HexToAddress(c.OracleContract)
}

// Validate checks Scorer for internal consistency.
func (s *Scorer) Validate() error {
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("bad Endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported Endpoint scheme '%s'", u.Scheme)
	}
	if s.ChainID == 0 {
		return errors.New("zero ChainID")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("invalid Timeout: %s", s.Timeout)
	}
	return nil
}

// Validate checks Oracle for internal consistency.
func (o *Oracle) Validate() error {
	if o.DedupCacheSize <= 0 {
		return fmt.Errorf("invalid DedupCacheSize: %d", o.DedupCacheSize)
	}
	if o.ResubscribeDelay <= 0 {
		return fmt.Errorf("invalid ResubscribeDelay: %s", o.ResubscribeDelay)
	}
	return nil
}

// Validate checks Sweeper for internal consistency.
func (s *Sweeper) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("invalid Interval: %s", s.Interval)
	}
	return nil
}

// Validate checks API for internal consistency.
func (a *API) Validate() error {
	if a.MaxRecentLimit <= 0 {
		return fmt.Errorf("invalid MaxRecentLimit: %d", a.MaxRecentLimit)
	}
	if a.Enabled && len(a.GetAddresses()) == 0 {
		return errors.New("no Addresses for enabled API")
	}
	return nil
}
