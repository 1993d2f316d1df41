// Package config provides a reusable loader for rollupd/proverd
// configuration files and environment variables, matching the recognized
// options of spec.md §6 ("Runner configuration").
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/sovereign-rollup/core/pkg/utils"
)

// Config is the unified configuration for a runner (C10) process.
type Config struct {
	StartHeight uint64 `mapstructure:"start_height" json:"start_height"`

	RPC struct {
		BindHost string `mapstructure:"bind_host" json:"bind_host"`
		BindPort int    `mapstructure:"bind_port" json:"bind_port"`
	} `mapstructure:"rpc" json:"rpc"`

	Storage struct {
		Path string `mapstructure:"path" json:"path"`
	} `mapstructure:"storage" json:"storage"`

	DA struct {
		Adapter string                 `mapstructure:"adapter" json:"adapter"`
		Params  map[string]interface{} `mapstructure:"params" json:"params"`
	} `mapstructure:"da" json:"da"`

	Sequencer struct {
		Preferred       string `mapstructure:"preferred" json:"preferred"`
		DeferredSlots   uint64 `mapstructure:"deferred_slots" json:"deferred_slots"`
		RefilterOnExec  bool   `mapstructure:"refilter_on_exec" json:"refilter_on_exec"`
		MaxBatchBytes   int    `mapstructure:"max_batch_bytes" json:"max_batch_bytes"`
		BlobsNextSlot   int    `mapstructure:"blobs_next_slot" json:"blobs_next_slot"`
	} `mapstructure:"sequencer" json:"sequencer"`

	Prover struct {
		NumThreads int    `mapstructure:"num_threads" json:"num_threads"`
		Mode       string `mapstructure:"mode" json:"mode"` // skip|simulate|execute|prover
	} `mapstructure:"prover" json:"prover"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files from configDir and merges any
// environment-specific overrides, storing the result in AppConfig.
// If env is empty, only the default configuration is loaded.
func Load(configDir, env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up environment-variable overrides

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the ROLLUP_ENV environment variable
// to select an override file, and ROLLUP_CONFIG_DIR (default "config") for
// the directory to search.
func LoadFromEnv() (*Config, error) {
	dir := utils.EnvOrDefault("ROLLUP_CONFIG_DIR", "config")
	return Load(dir, utils.EnvOrDefault("ROLLUP_ENV", ""))
}
