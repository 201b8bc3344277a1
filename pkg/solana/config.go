package solana

import (
	"context"
	"time"

	xrate "golang.org/x/time/rate"

	"github.com/code-payments/solana-sdk-go/pkg/config"
	"github.com/code-payments/solana-sdk-go/pkg/config/env"
	"github.com/code-payments/solana-sdk-go/pkg/rate"
)

type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"
)

const (
	MaxAttemptsConfigEnvName = "SOLANA_RPC_MAX_ATTEMPTS"
	defaultMaxAttempts       = 3

	BlockhashCacheWindowConfigEnvName = "SOLANA_RPC_BLOCKHASH_CACHE_WINDOW"
	defaultBlockhashCacheWindow       = 2 * time.Second

	RequestsPerSecondConfigEnvName = "SOLANA_RPC_REQUESTS_PER_SECOND"
	defaultRequestsPerSecond       = 0
)

// ClientConfig controls the runtime behaviour of the RPC client.
type ClientConfig struct {
	// MaxAttempts is the number of times a request is attempted when the node
	// rate limits us or is unhealthy.
	MaxAttempts config.Uint64

	// BlockhashCacheWindow is the base duration a blockhash is reused for
	// before a new one is requested. The effective window is jittered.
	BlockhashCacheWindow config.Duration

	// Limiter throttles requests per RPC method before they are sent.
	Limiter rate.Limiter
}

// NewClientConfigFromEnv returns a ClientConfig backed by environment
// variables. A zero request rate disables client side throttling.
func NewClientConfigFromEnv() *ClientConfig {
	var limiter rate.Limiter = &rate.NoLimiter{}

	rps := env.NewFloat64Config(RequestsPerSecondConfigEnvName, defaultRequestsPerSecond).Get(context.Background())
	if rps > 0 {
		limiter = rate.NewLocalRateLimiter(xrate.Limit(rps))
	}

	return &ClientConfig{
		MaxAttempts:          env.NewUint64Config(MaxAttemptsConfigEnvName, defaultMaxAttempts),
		BlockhashCacheWindow: env.NewDurationConfig(BlockhashCacheWindowConfigEnvName, defaultBlockhashCacheWindow),
		Limiter:              limiter,
	}
}
