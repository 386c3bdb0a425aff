package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch all leads from the CRM into the local store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.InitializeApp(ctx); err != nil {
			return err
		}

		stats := env.Service.GetDataStats(ctx)
		fmt.Fprintf(os.Stdout, "Synced. %d leads stored locally.\n", stats.TotalLeads)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
