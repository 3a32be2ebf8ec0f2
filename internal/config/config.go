package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ReplayConfig holds configuration for the replay command, loaded from
// flags, env, or config file.
type ReplayConfig struct {
	Input             string
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	BatchSize         int
	PGDSN             string
	PoolName          string
	AssetX            string
	AssetY            string
	StakeAsset        string
	Operator          string
	FeeRecipient      string
	FloorRate         string
	Faucet            string
	LeagueDuration    time.Duration
	SpawnTimeout      time.Duration
	PlatformFeeBps    uint32
	EntryFeeLow       string
	EntryFeeMid       string
	EntryFeeHigh      string
	AutoStartCount    int
	LogLevel          string
}

// LoadReplay merges config file, environment variables, and flags.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}

	v.SetDefault("out", "./data/results.jsonl")
	v.SetDefault("checkpoint", "./data/replay_checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("batch-size", 1000)
	v.SetDefault("pool-name", "main")
	v.SetDefault("asset-x", "tokenX")
	v.SetDefault("asset-y", "tokenY")
	v.SetDefault("stake-asset", "tokenY")
	v.SetDefault("operator", "operator")
	v.SetDefault("fee-recipient", "treasury")
	v.SetDefault("floor-rate", "1000000000000000000")
	v.SetDefault("faucet", "1000000000")
	v.SetDefault("league-duration", 3*time.Minute)
	v.SetDefault("spawn-timeout", 10*time.Minute)
	v.SetDefault("platform-fee-bps", 500)
	v.SetDefault("entry-fee-low", "100")
	v.SetDefault("entry-fee-mid", "1000")
	v.SetDefault("entry-fee-high", "10000")
	v.SetDefault("auto-start-count", 1)
	v.SetDefault("log-level", "info")

	cfg := ReplayConfig{
		Input:             v.GetString("in"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		BatchSize:         v.GetInt("batch-size"),
		PGDSN:             v.GetString("pg-dsn"),
		PoolName:          v.GetString("pool-name"),
		AssetX:            v.GetString("asset-x"),
		AssetY:            v.GetString("asset-y"),
		StakeAsset:        v.GetString("stake-asset"),
		Operator:          v.GetString("operator"),
		FeeRecipient:      v.GetString("fee-recipient"),
		FloorRate:         v.GetString("floor-rate"),
		Faucet:            v.GetString("faucet"),
		LeagueDuration:    v.GetDuration("league-duration"),
		SpawnTimeout:      v.GetDuration("spawn-timeout"),
		PlatformFeeBps:    v.GetUint32("platform-fee-bps"),
		EntryFeeLow:       v.GetString("entry-fee-low"),
		EntryFeeMid:       v.GetString("entry-fee-mid"),
		EntryFeeHigh:      v.GetString("entry-fee-high"),
		AutoStartCount:    v.GetInt("auto-start-count"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// AuditConfig holds configuration for the audit command.
type AuditConfig struct {
	RPCURL      string
	PGDSN       string
	PoolName    string
	TokenX      string
	TokenY      string
	PoolAccount string
	LogLevel    string
}

// LoadAudit merges config file, environment variables, and flags.
func LoadAudit(cfgFile string, flags *pflag.FlagSet) (AuditConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AuditConfig{}, err
	}

	v.SetDefault("pool-name", "main")
	v.SetDefault("log-level", "info")

	cfg := AuditConfig{
		RPCURL:      v.GetString("rpc"),
		PGDSN:       v.GetString("pg-dsn"),
		PoolName:    v.GetString("pool-name"),
		TokenX:      v.GetString("token-x"),
		TokenY:      v.GetString("token-y"),
		PoolAccount: v.GetString("pool-account"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
