package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bulwark/internal/counter"
	"bulwark/internal/platform/config"
	"bulwark/internal/ratelimit/models"
	"bulwark/internal/ratelimit/service/tiered"
	"bulwark/internal/ratelimit/service/tokenbucket"
)

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Inspect and reset rate-limit state",
}

var ratelimitStatusCmd = &cobra.Command{
	Use:   "status <user-id>",
	Short: "Show minute, hour and day usage for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, err := tiered.New(store, tiered.WithConfig(&cfg.RateLimit), tiered.WithLogger(cliLogger()))
			if err != nil {
				return err
			}
			status, err := svc.GetUserRateLimitStatus(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		})
	},
}

var ratelimitResetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Clear a user's fixed-window counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, err := tiered.New(store, tiered.WithConfig(&cfg.RateLimit), tiered.WithLogger(cliLogger()))
			if err != nil {
				return err
			}
			svc.ResetUserRateLimits(ctx, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "reset rate limits for %s\n", args[0])
			return nil
		})
	},
}

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Inspect and reset token buckets",
}

func lookupPreset(cfg *config.Config, name string) (string, error) {
	name = strings.ToLower(name)
	if _, ok := cfg.RateLimit.Buckets[name]; !ok {
		return "", fmt.Errorf("unknown bucket preset %q", name)
	}
	return name, nil
}

var bucketPeekCmd = &cobra.Command{
	Use:   "peek <preset> <actor>",
	Short: "Show the refilled token count without consuming",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			name, err := lookupPreset(cfg, args[0])
			if err != nil {
				return err
			}
			preset := cfg.RateLimit.Buckets[name]
			svc, err := tokenbucket.New(store, tokenbucket.WithLogger(cliLogger()))
			if err != nil {
				return err
			}
			key := models.BucketKey(name, args[1])
			tokens, found, err := svc.Peek(ctx, key, preset)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), &models.BucketStatusResponse{
				Key:      key,
				Preset:   name,
				Tokens:   tokens,
				Capacity: preset.Capacity,
				Found:    found,
			})
		})
	},
}

var bucketResetCmd = &cobra.Command{
	Use:   "reset <preset> <actor>",
	Short: "Delete a token bucket so it restarts full",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			name, err := lookupPreset(cfg, args[0])
			if err != nil {
				return err
			}
			svc, err := tokenbucket.New(store, tokenbucket.WithLogger(cliLogger()))
			if err != nil {
				return err
			}
			key := models.BucketKey(name, args[1])
			if err := svc.Reset(ctx, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key)
			return nil
		})
	},
}

func init() {
	ratelimitCmd.AddCommand(ratelimitStatusCmd, ratelimitResetCmd)
	bucketCmd.AddCommand(bucketPeekCmd, bucketResetCmd)
	rootCmd.AddCommand(ratelimitCmd, bucketCmd)
}
