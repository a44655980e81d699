package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mt5_bridge/internal/auth"
)

var operator string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		svc := auth.NewService(cfg.JWTSecret, cfg.JWTTTL, cfg.APIKeyHash)
		if !svc.Enabled() {
			return errors.New("JWT_SECRET is not set")
		}

		token, expiresAt, err := svc.GenerateToken(operator)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVarP(&operator, "operator", "o", "cli", "Operator name recorded in the token")
	rootCmd.AddCommand(tokenCmd)
}
