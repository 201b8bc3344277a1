package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/solana-sdk-go/pkg/solana"
)

const (
	encodingAuto   = "auto"
	encodingBase64 = "base64"
	encodingBase58 = "base58"

	outputText = "text"
	outputJSON = "json"
)

// Config is read from the config file, with TXINSPECT_* environment
// variables taking precedence.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Encoding of the input transaction: auto, base64 or base58.
	Encoding string `mapstructure:"encoding"`

	// Output is either text or json.
	Output string `mapstructure:"output"`

	// RPCEndpoint is required to resolve the lookups of v0 transactions.
	RPCEndpoint string `mapstructure:"rpc_endpoint"`
	Commitment  string `mapstructure:"commitment"`

	LookupTableCacheSize int `mapstructure:"lookup_table_cache_size"`

	AppName            string `mapstructure:"app_name"`
	NewRelicLicenseKey string `mapstructure:"new_relic_license_key"`
}

var defaultConfig = Config{
	LogLevel:  "warn",
	LogFormat: "text",

	Encoding: encodingAuto,
	Output:   outputText,

	Commitment: "confirmed",

	LookupTableCacheSize: 4096,

	AppName: "txinspect",
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("log_level", "TXINSPECT_LOG_LEVEL")
	_ = v.BindEnv("log_format", "TXINSPECT_LOG_FORMAT")

	_ = v.BindEnv("encoding", "TXINSPECT_ENCODING")
	_ = v.BindEnv("output", "TXINSPECT_OUTPUT")

	_ = v.BindEnv("rpc_endpoint", "TXINSPECT_RPC_ENDPOINT")
	_ = v.BindEnv("commitment", "TXINSPECT_COMMITMENT")

	_ = v.BindEnv("lookup_table_cache_size", "TXINSPECT_LOOKUP_TABLE_CACHE_SIZE")

	_ = v.BindEnv("app_name", "TXINSPECT_APP_NAME")
	_ = v.BindEnv("new_relic_license_key", "TXINSPECT_NEW_RELIC_LICENSE_KEY")
}

func loadConfig(v *viper.Viper, path string) (Config, error) {
	bindEnv(v)

	// viper.ReadInConfig only returns ConfigFileNotFoundError when searching
	// for a config file, so a missing explicit path is checked here.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
	} else if !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to check if config exists")
	}

	err := v.ReadInConfig()
	if _, isConfigNotFound := err.(viper.ConfigFileNotFoundError); err != nil && !isConfigNotFound {
		return Config{}, errors.Wrap(err, "failed to load config")
	}

	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal config")
	}

	config.Encoding = strings.ToLower(config.Encoding)
	switch config.Encoding {
	case encodingAuto, encodingBase64, encodingBase58:
	default:
		return Config{}, errors.Errorf("unsupported encoding: %s", config.Encoding)
	}

	config.Output = strings.ToLower(config.Output)
	switch config.Output {
	case outputText, outputJSON:
	default:
		return Config{}, errors.Errorf("unsupported output: %s", config.Output)
	}

	if _, err := parseCommitment(config.Commitment); err != nil {
		return Config{}, err
	}

	return config, nil
}

func parseCommitment(value string) (solana.Commitment, error) {
	switch strings.ToLower(value) {
	case "processed":
		return solana.CommitmentProcessed, nil
	case "confirmed", "":
		return solana.CommitmentConfirmed, nil
	case "finalized":
		return solana.CommitmentFinalized, nil
	default:
		return solana.Commitment{}, errors.Errorf("unsupported commitment: %s", value)
	}
}

func configureLogger(config Config) {
	if strings.ToLower(config.LogFormat) == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{})
	}

	level, err := logrus.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		logrus.StandardLogger().WithField("log_level", config.LogLevel).Warn("unknown log level, ignoring")
	} else {
		logrus.SetLevel(level)
	}

	// stdout carries the inspection output.
	logrus.SetOutput(os.Stderr)
}
