// Package config loads the node's environment configuration (§6
// "Environment configuration") through viper: a config file if present,
// overridden by NOVACHAIN_-prefixed environment variables, falling back to
// defaults otherwise. Grounded on the viper usage in the pack's
// alphabill-org-alphabill (cmd/root.go's initializeConfig: viper.New,
// SetConfigFile, tolerate ConfigFileNotFoundError, AutomaticEnv) — the
// teacher carries no config layer of its own, genesis/network constants
// are hardcoded directly in its main.go.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NOVACHAIN"

// Config holds every value §6 lists under "Environment configuration",
// plus the node-local addresses the teacher hardcoded in main.go.
type Config struct {
	EpochStart      time.Time
	SlotInterval    time.Duration
	ActiveDelegates int
	GenesisBlockID  string
	MaxTxPerBlock   int
	SaltLength      int
	MaxBlockBytes   int
	BlockVersion    uint32

	DataDir            string
	P2PListenAddr      string
	ExplorerListenAddr string
}

// Load reads path (if it exists) and the environment into a Config.
// path may be empty, in which case only defaults and environment
// variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("slot_interval_seconds", 10)
	v.SetDefault("active_delegates", 21)
	v.SetDefault("genesis_block_id", "")
	v.SetDefault("max_tx_per_block", 200)
	v.SetDefault("salt_length", 16)
	v.SetDefault("max_block_bytes", 2<<20)
	v.SetDefault("block_version", 1)
	v.SetDefault("epoch_start_unix", 0)
	v.SetDefault("data_dir", "./data")
	v.SetDefault("p2p_listen_addr", ":7700")
	v.SetDefault("explorer_listen_addr", ":8080")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return &Config{
		EpochStart:      time.Unix(v.GetInt64("epoch_start_unix"), 0).UTC(),
		SlotInterval:    time.Duration(v.GetInt("slot_interval_seconds")) * time.Second,
		ActiveDelegates: v.GetInt("active_delegates"),
		GenesisBlockID:  v.GetString("genesis_block_id"),
		MaxTxPerBlock:   v.GetInt("max_tx_per_block"),
		SaltLength:      v.GetInt("salt_length"),
		MaxBlockBytes:   v.GetInt("max_block_bytes"),
		BlockVersion:    uint32(v.GetInt("block_version")),

		DataDir:            v.GetString("data_dir"),
		P2PListenAddr:      v.GetString("p2p_listen_addr"),
		ExplorerListenAddr: v.GetString("explorer_listen_addr"),
	}, nil
}
