package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bulwark/pkg/platform/middleware/admin"
	"bulwark/pkg/platform/middleware/auth"
)

var (
	tokenDevice string
	tokenTTL    time.Duration
)

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token <admin-token>",
	Short: "Print the bcrypt hash to use as admin.token_hash",
	Long: `Print the bcrypt hash of an admin token for BULWARK_ADMIN_TOKEN_HASH.

The token will appear in shell history. Prefer:
  bulwarkctl hash-token "$BULWARK_ADMIN_TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := admin.HashToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Access tokens for local testing",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue <user-id>",
	Short: "Sign an access token with the configured signing key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.SigningKey == "" {
			return errors.New("auth.signing_key is not configured")
		}
		token, err := auth.NewHMACVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer).
			Issue(args[0], tokenDevice, time.Now(), tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenDevice, "device", "", "device id claim")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(hashTokenCmd, tokenCmd)
}
