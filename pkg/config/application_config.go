package config

import (
	"errors"
	"fmt"
)

// ApplicationConfiguration is the configuration of the oracle process.
type ApplicationConfiguration struct {
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`

	Chain   Chain   `yaml:"Chain"`
	Scorer  Scorer  `yaml:"Scorer"`
	Oracle  Oracle  `yaml:"Oracle"`
	Sweeper Sweeper `yaml:"Sweeper"`
	Store   Store   `yaml:"Store"`

	API        API          `yaml:"API"`
	Prometheus BasicService `yaml:"Prometheus"`
	Pprof      BasicService `yaml:"Pprof"`
}

// DefaultApplicationConfiguration returns the configuration with all the
// defaults set, it's used as a base for config decoding.
func DefaultApplicationConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		LogLevel: "info",
		Chain: Chain{
			GasLimit:  DefaultGasLimit,
			TxTimeout: DefaultTxTimeout,
		},
		Scorer: Scorer{
			Endpoint: DefaultScorerEndpoint,
			ChainID:  1,
			Timeout:  DefaultScorerTimeout,
		},
		Oracle: Oracle{
			Enabled:          true,
			DedupCacheSize:   DefaultDedupCacheSize,
			ResubscribeDelay: DefaultResubscribeDelay,
		},
		Sweeper: Sweeper{
			Enabled:  true,
			Interval: DefaultSweepInterval,
		},
		Store: Store{
			Capacity: DefaultStoreCapacity,
		},
		API: API{
			BasicService: BasicService{
				Enabled:   true,
				Addresses: []string{":3001"},
			},
			MaxRecentLimit: DefaultMaxRecentLimit,
		},
	}
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	if a.Oracle.Enabled || a.Sweeper.Enabled {
		if err := a.Chain.Validate(); err != nil {
			return fmt.Errorf("invalid Chain config: %w", err)
		}
	}
	if a.Oracle.Enabled && a.Chain.KeyFile == "" {
		return errors.New("Oracle requires Chain.KeyFile to be set")
	}
	if err := a.Scorer.Validate(); err != nil {
		return fmt.Errorf("invalid Scorer config: %w", err)
	}
	if err := a.Oracle.Validate(); err != nil {
		return fmt.Errorf("invalid Oracle config: %w", err)
	}
	if err := a.Sweeper.Validate(); err != nil {
		return fmt.Errorf("invalid Sweeper config: %w", err)
	}
	if a.Store.Capacity <= 0 {
		return fmt.Errorf("invalid Store.Capacity: %d", a.Store.Capacity)
	}
	if err := a.API.Validate(); err != nil {
		return fmt.Errorf("invalid API config: %w", err)
	}
	return nil
}
