package cmd

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"bulwark/internal/platform/kafka/consumer"
	"bulwark/pkg/platform/audit"
)

var (
	eventsGroup     string
	eventsFromStart bool
	eventsAction    string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read the security event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print security events as JSON lines until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := consumer.New(consumer.Config{
			Brokers:   cfg.Kafka.Brokers,
			Topic:     cfg.Kafka.Topic,
			GroupID:   eventsGroup,
			FromStart: eventsFromStart,
		}, cliLogger())
		if err != nil {
			return err
		}
		defer c.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		err = c.Run(cmd.Context(), func(_ context.Context, e audit.Event) error {
			if eventsAction != "" && e.Action != eventsAction {
				return nil
			}
			return enc.Encode(e)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	eventsTailCmd.Flags().StringVar(&eventsGroup, "group", "", "consumer group (commits offsets)")
	eventsTailCmd.Flags().BoolVar(&eventsFromStart, "from-start", false, "replay retained events")
	eventsTailCmd.Flags().StringVar(&eventsAction, "action", "", "only print events with this action")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}
