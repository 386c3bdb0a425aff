package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-navigator/internal/model"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List locally stored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Service.GetAllLeads(ctx)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if limit > 0 && len(leads) > limit {
			leads = leads[:limit]
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

var leadCmd = &cobra.Command{
	Use:   "lead <lead-id>",
	Short: "Show full details of a lead",
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

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(lead); err != nil {
			return err
		}

		withInsights, _ := cmd.Flags().GetBool("insights")
		if withInsights {
			insights, err := env.Service.GetOrGenerateInsights(ctx, *lead)
			if err != nil {
				return err
			}
			formatInsights(os.Stdout, insights)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored leads by name, company, or email",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := env.Service.SearchLeads(ctx, args[0])
		if err != nil {
			return err
		}

		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No matching leads.")
			return nil
		}

		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

func init() {
	leadsCmd.Flags().Int("limit", 0, "max number of leads to display (0 = all)")
	leadCmd.Flags().Bool("insights", false, "also show insights, generating them if needed")

	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(leadCmd)
	rootCmd.AddCommand(searchCmd)
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCOMPANY\tTITLE\tSTATUS\tLOCATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----\t------\t--------")

	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(l.ID),
			l.FullName(),
			l.AccountName,
			l.Title,
			l.Status,
			l.Location(),
		)
	}
	_ = w.Flush()
}

// formatInsights writes a readable insight listing to w.
func formatInsights(out io.Writer, insights []model.Insight) {
	for _, ins := range insights {
		_, _ = fmt.Fprintf(out, "\n[%s] %s (confidence %.0f%%)\n", ins.Category, ins.Title, ins.Confidence*100)
		_, _ = fmt.Fprintf(out, "  %s\n", ins.Content)
	}
}

// truncateID returns the first 8 characters of an id for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
