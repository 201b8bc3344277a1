// Command txinspect decodes a wire transaction and prints its instructions.
//
// The transaction is read from the first argument, or from stdin when no
// argument is given.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/code-payments/solana-sdk-go/pkg/cache"
	"github.com/code-payments/solana-sdk-go/pkg/metrics"
	"github.com/code-payments/solana-sdk-go/pkg/netutil"
	"github.com/code-payments/solana-sdk-go/pkg/solana"
	address_lookup_table "github.com/code-payments/solana-sdk-go/pkg/solana/addresslookuptable"
)

var (
	configPath = flag.String("config", "txinspect.yaml", "configuration file path")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		logrus.StandardLogger().WithField("type", "cmd/txinspect").WithError(err).Error("failed to inspect transaction")
		os.Exit(1)
	}
}

func run() error {
	config, err := loadConfig(viper.New(), *configPath)
	if err != nil {
		return err
	}
	configureLogger(config)

	input := flag.Arg(0)
	if len(input) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return errors.Wrap(err, "failed to read stdin")
		}
		input = string(b)
	}

	raw, err := decodeInput(input, config.Encoding)
	if err != nil {
		return errors.Wrap(err, "failed to decode input")
	}

	ctx := context.Background()
	if len(config.NewRelicLicenseKey) > 0 {
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(config.AppName),
			newrelic.ConfigLicense(config.NewRelicLicenseKey),
		)
		if err != nil {
			return errors.Wrap(err, "error connecting to new relic")
		}
		defer app.Shutdown(5 * time.Second)

		txn := app.StartTransaction("inspect")
		defer txn.End()

		ctx = newrelic.NewContext(metrics.NewContext(ctx, app), txn)
	}

	resolver, err := newResolver(config)
	if err != nil {
		return err
	}

	rep, err := inspect(ctx, raw, resolver)
	if err != nil {
		return err
	}
	return rep.write(os.Stdout, config.Output)
}

func newResolver(config Config) (address_lookup_table.Resolver, error) {
	if len(config.RPCEndpoint) == 0 {
		return nil, nil
	}

	endpoint, err := netutil.ValidateHttpUrl(config.RPCEndpoint, false)
	if err != nil {
		return nil, errors.Wrap(err, "invalid rpc endpoint")
	}

	commitment, err := parseCommitment(config.Commitment)
	if err != nil {
		return nil, err
	}

	return address_lookup_table.NewRPCResolver(
		solana.New(endpoint),
		commitment,
		cache.NewCache(config.LookupTableCacheSize),
	), nil
}
