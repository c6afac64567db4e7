package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/source"
)

var estimateJSON bool

var estimateCmd = &cobra.Command{
	Use:   "estimate <source-file>",
	Short: "Project API spend for a profile sheet without calling any provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		src, err := source.Open(args[0])
		if err != nil {
			return err
		}
		profiles, err := src.Fetch(ctx)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", args[0])
		}

		prompts, err := newPromptBuilder(cfg)
		if err != nil {
			return err
		}

		est := cost.NewEstimator(cfg.Pricing, prompts, cfg.Perplexity.MaxTokens, cfg.Anthropic.MaxTokens)
		batch := est.EstimateBatch(profiles)

		if estimateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(batch)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROFILE\tRESEARCH\tEMAIL\tTOTAL")
		for _, pe := range batch.Breakdown {
			research, email := "-", "-"
			if pe.Research != nil {
				research = fmt.Sprintf("$%.4f", pe.Research.CostUSD)
			}
			if pe.Email != nil {
				email = fmt.Sprintf("$%.4f", pe.Email.CostUSD)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t$%.4f\n", pe.Profile, research, email, pe.TotalUSD)
		}
		fmt.Fprintln(w, "\t\t\t")
		fmt.Fprintf(w, "%d profiles\t%d research calls\t%d email calls\t$%.4f\n",
			batch.Profiles, batch.ResearchCalls, batch.EmailCalls, batch.TotalUSD)
		return w.Flush()
	},
}

func init() {
	estimateCmd.Flags().BoolVar(&estimateJSON, "json", false, "emit the full estimate as JSON")
	rootCmd.AddCommand(estimateCmd)
}
