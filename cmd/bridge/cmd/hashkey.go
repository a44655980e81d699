package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mt5_bridge/internal/auth"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api-key>",
	Short: "Print the bcrypt hash to put in API_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashKey(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashKeyCmd)
}
