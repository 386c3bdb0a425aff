package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Clear the local store and re-fetch everything from the CRM",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Service.RefreshAllData(ctx); err != nil {
			return err
		}

		stats := env.Service.GetDataStats(ctx)
		fmt.Fprintf(os.Stdout, "Refreshed. %d leads stored locally.\n", stats.TotalLeads)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate record counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stats := env.Service.GetDataStats(ctx)
		fmt.Fprintf(os.Stdout, "Leads:\t%d\nInsights:\t%d\n", stats.TotalLeads, stats.TotalInsights)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(statsCmd)
}
