package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/concordbft/concord/consensus"
)

// Config is a validator node's on-disk configuration, loaded from YAML
// (grounded in sanketsaagar-Litechain's node config) and overridable by
// CLI flags.
type Config struct {
	DataDir        string   `yaml:"dataDir"`
	ListenPort     int      `yaml:"listenPort"`
	BootstrapPeers []string `yaml:"bootstrapPeers"`
	ValidatorKey   string   `yaml:"validatorKey"`
	GenesisFile    string   `yaml:"genesisFile"`
	MetricsAddr    string   `yaml:"metricsAddr"`

	UnstakeDelay     uint64 `yaml:"unstakeDelay"`
	DeltaMillis      int64  `yaml:"deltaMillis"`
	CommitTimeMillis int64  `yaml:"commitTimeMillis"`
	MaxValidators    int    `yaml:"maxValidators"`
}

// DefaultConfig matches consensus.DefaultParams and a sane local layout.
func DefaultConfig() Config {
	defaults := consensus.DefaultParams()
	return Config{
		DataDir:          "./data",
		ListenPort:       9000,
		ValidatorKey:     "./validator.key",
		GenesisFile:      "./genesis.json",
		MetricsAddr:      ":9090",
		UnstakeDelay:     defaults.UnstakeDelay,
		DeltaMillis:      defaults.Delta.Milliseconds(),
		CommitTimeMillis: defaults.CommitTime.Milliseconds(),
		MaxValidators:    defaults.MaxValidators,
	}
}

// LoadConfig reads a YAML config file over DefaultConfig, so any field the
// file omits keeps its default.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Params derives consensus.Params from the config's tunables.
func (c Config) Params() consensus.Params {
	return consensus.Params{
		UnstakeDelay:  c.UnstakeDelay,
		Delta:         time.Duration(c.DeltaMillis) * time.Millisecond,
		CommitTime:    time.Duration(c.CommitTimeMillis) * time.Millisecond,
		MaxValidators: c.MaxValidators,
	}
}
