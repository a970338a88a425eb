package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the YAML file a host operator edits before running the CLI,
// the same shape the teacher's cmd/ccoind flags cover, narrowed to what a
// client (not a node) needs: one RPC endpoint, one relayer, one pool.
type Config struct {
	RPCURL       string `yaml:"rpc_url"`
	PoolAddress  string `yaml:"pool_address"`
	RelayerURL   string `yaml:"relayer_url"`
	ChainID      int64  `yaml:"chain_id"`
	DataDir      string `yaml:"data_dir"`
	WalletKeyHex string `yaml:"wallet_key_hex"`
	LogLevel     string `yaml:"log_level"`
}

// DefaultConfig mirrors the teacher's parseFlags defaults, repointed at a
// local devnet instead of a P2P listen address.
func DefaultConfig() *Config {
	return &Config{
		RPCURL:      "http://127.0.0.1:8545",
		PoolAddress: "",
		RelayerURL:  "http://127.0.0.1:9090/api/shielded",
		ChainID:     1337,
		DataDir:     "./data",
		LogLevel:    "info",
	}
}

// LoadConfig reads a YAML config file, falling back to defaults for any
// field the file doesn't set.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
