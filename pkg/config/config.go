package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the version of the oracle, set at build time.
var Version string

// DefaultConfigPath is the default path to the oracle configuration file.
const DefaultConfigPath = "./config/oracle.yml"

// Config is the top level struct representing the oracle configuration.
type Config struct {
	ApplicationConfiguration ApplicationConfiguration `yaml:"ApplicationConfiguration"`
}

// LoadFile loads the config from the provided path, fills in the defaults and
// validates the result.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Load(configData)
}

// Load decodes the configuration from the given YAML data. Unknown fields are
// treated as errors.
func Load(configData []byte) (Config, error) {
	config := Config{
		ApplicationConfiguration: DefaultApplicationConfiguration(),
	}

	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.ApplicationConfiguration.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("invalid ApplicationConfiguration: %w", err)
	}
	return config, nil
}
