package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-navigator/internal/model"
)

var insightsCmd = &cobra.Command{
	Use:   "insights <lead-id>",
	Short: "Show insights for a lead, generating them if needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		lead, err := env.Service.GetLeadByID(ctx, args[0])
		if err != nil {
			return err
		}
		if lead == nil {
			fmt.Fprintf(os.Stderr, "Lead %s not found.\n", args[0])
			return nil
		}

		regenerate, _ := cmd.Flags().GetBool("regenerate")

		var insights []model.Insight
		if regenerate {
			insights, err = env.Service.GenerateInsightsForLead(ctx, *lead)
		} else {
			insights, err = env.Service.GetOrGenerateInsights(ctx, *lead)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Insights for %s (%s):\n", lead.FullName(), lead.AccountName)
		formatInsights(os.Stdout, insights)
		return nil
	},
}

func init() {
	insightsCmd.Flags().Bool("regenerate", false, "discard stored insights and generate a fresh set")
	rootCmd.AddCommand(insightsCmd)
}
