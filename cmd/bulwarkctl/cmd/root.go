// Package cmd provides the bulwarkctl operator commands. They act on the
// shared counter store directly, so they work while the gateway is down.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bulwark/internal/counter"
	counterredis "bulwark/internal/counter/redis"
	"bulwark/internal/platform/config"
	"bulwark/internal/platform/logger"
	platformredis "bulwark/internal/platform/redis"
)

var (
	cfgFile  string
	envFile  string
	redisURL string
)

// storeOpener is replaced in tests with an in-process store.
var storeOpener = openRedisStore

var rootCmd = &cobra.Command{
	Use:   "bulwarkctl",
	Short: "Operate a bulwark deployment",
	Long: `bulwarkctl inspects and resets the state bulwark keeps in its counter
store: rate-limit windows, token buckets, intrusion blocks and cached IP
reputation verdicts. It also tails the security event stream and issues
credentials for local testing.

Configuration is read the same way as the server: .env, then --config,
then BULWARK_* environment variables. --redis-url overrides the store.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "counter store URL (overrides config)")
}

func cliLogger() *slog.Logger {
	return logger.NewWithWriter(os.Stderr, "warn", "text")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(cfgFile, cliLogger()).WithEnvFile(envFile).Load()
	if err != nil {
		return nil, err
	}
	if redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	return cfg, nil
}

func openRedisStore(ctx context.Context, cfg *config.Config) (counter.Store, func(), error) {
	if cfg.Redis.URL == "" {
		return nil, nil, errors.New("no counter store configured: set --redis-url or BULWARK_REDIS_URL")
	}
	client, err := platformredis.New(ctx, cfg.Redis, nil)
	if err != nil {
		return nil, nil, err
	}
	return counterredis.New(client.Client), func() { _ = client.Close() }, nil
}

// withStore loads config, opens the store and hands both to fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store counter.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, closeFn, err := storeOpener(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, cfg, store)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
