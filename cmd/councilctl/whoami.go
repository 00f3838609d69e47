package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the user id this machine talks to the council as",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUserID()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), userID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
