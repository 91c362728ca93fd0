package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bulwark/internal/counter"
	intrusionservice "bulwark/internal/intrusion/service"
	"bulwark/internal/intrusion/models"
	reputationclient "bulwark/internal/ipreputation/client"
	reputationservice "bulwark/internal/ipreputation/service"
	"bulwark/internal/platform/config"
)

var (
	blockDuration time.Duration
	blockReason   string
	blocksJSON    bool
)

func intrusionFor(cfg *config.Config, store counter.Store) (*intrusionservice.Service, *reputationservice.Gate, error) {
	gate, err := reputationGate(cfg, store)
	if err != nil {
		return nil, nil, err
	}
	svc, err := intrusionservice.New(store, &cfg.Intrusion, cfg.DevMode,
		intrusionservice.WithLogger(cliLogger()),
		intrusionservice.WithReputationInvalidator(gate),
	)
	if err != nil {
		gate.Close()
		return nil, nil, err
	}
	return svc, gate, nil
}

func reputationGate(cfg *config.Config, store counter.Store) (*reputationservice.Gate, error) {
	return reputationservice.NewGate(store, reputationclient.New(&cfg.IPReputation), &cfg.IPReputation, cfg.DevMode,
		reputationservice.WithLogger(cliLogger()),
	)
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Manage intrusion blocks",
}

var blocksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active blocks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, gate, err := intrusionFor(cfg, store)
			if err != nil {
				return err
			}
			defer gate.Close()
			blocks, err := svc.ListBlocks(ctx)
			if err != nil {
				return err
			}
			if blocksJSON {
				return printJSON(cmd.OutOrStdout(), &models.BlockListResponse{Blocks: blocks, Count: len(blocks)})
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "IP\tCATEGORY\tTRIGGER\tEXPIRES")
			for _, b := range blocks {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", b.IP, b.Category, b.Trigger, b.ExpiresAt.Format(time.RFC3339))
			}
			return tw.Flush()
		})
	},
}

var blocksGetCmd = &cobra.Command{
	Use:   "get <ip>",
	Short: "Show one block record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, gate, err := intrusionFor(cfg, store)
			if err != nil {
				return err
			}
			defer gate.Close()
			ip, ok := intrusionservice.NormalizeIP(args[0])
			if !ok {
				return fmt.Errorf("invalid ip %q", args[0])
			}
			rec, err := svc.GetBlock(ctx, ip)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var blocksAddCmd = &cobra.Command{
	Use:   "block <ip>",
	Short: "Block an address manually",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, gate, err := intrusionFor(cfg, store)
			if err != nil {
				return err
			}
			defer gate.Close()
			ip, ok := intrusionservice.NormalizeIP(args[0])
			if !ok {
				return fmt.Errorf("invalid ip %q", args[0])
			}
			d := blockDuration
			if d <= 0 {
				d = cfg.Intrusion.TemporaryBlockDuration
			}
			if err := svc.Block(ctx, ip, models.CategoryManual, models.TriggerManual, blockReason, d); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blocked %s for %s\n", ip, d)
			return nil
		})
	},
}

var blocksRemoveCmd = &cobra.Command{
	Use:   "unblock <ip>",
	Short: "Lift a block and clear its violation counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			svc, gate, err := intrusionFor(cfg, store)
			if err != nil {
				return err
			}
			ip, ok := intrusionservice.NormalizeIP(args[0])
			if !ok {
				gate.Close()
				return fmt.Errorf("invalid ip %q", args[0])
			}
			err = svc.Unblock(ctx, ip)
			// Close drains the asynchronous reputation invalidation.
			gate.Close()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", ip)
			return nil
		})
	},
}

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Manage cached reputation verdicts",
}

var reputationInvalidateCmd = &cobra.Command{
	Use:   "invalidate <ip>",
	Short: "Drop the cached verdict so the next request re-checks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *config.Config, store counter.Store) error {
			gate, err := reputationGate(cfg, store)
			if err != nil {
				return err
			}
			defer gate.Close()
			if err := gate.Invalidate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
			return nil
		})
	},
}

func init() {
	blocksListCmd.Flags().BoolVar(&blocksJSON, "json", false, "print JSON")
	blocksAddCmd.Flags().DurationVar(&blockDuration, "duration", 0, "block duration (default: temporary block duration)")
	blocksAddCmd.Flags().StringVar(&blockReason, "reason", "manual block", "reason stored with the block")
	blocksCmd.AddCommand(blocksListCmd, blocksGetCmd, blocksAddCmd, blocksRemoveCmd)
	reputationCmd.AddCommand(reputationInvalidateCmd)
	rootCmd.AddCommand(blocksCmd, reputationCmd)
}
