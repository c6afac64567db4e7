package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/schedule"
	"github.com/sells-group/outreach-cli/internal/source"
)

var regenCmd = &cobra.Command{
	Use:   "regen <source-file> <row-id>",
	Short: "Regenerate the email draft for a single row",
	Long:  "Rebuilds one email draft from the row's existing research, overwriting the current draft. Bypasses task planning.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("regen"); err != nil {
			return err
		}

		rowID, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrapf(err, "invalid row id %q", args[1])
		}

		src, err := source.Open(args[0])
		if err != nil {
			return err
		}
		profiles, err := src.Fetch(ctx)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", args[0])
		}

		var target *model.Profile
		for i := range profiles {
			if profiles[i].ID == rowID {
				target = &profiles[i]
				break
			}
		}
		if target == nil {
			return eris.Errorf("row %d not found in %s", rowID, args[0])
		}
		if !target.HasResearch() {
			return eris.Errorf("row %d has no research yet, run the pipeline first", rowID)
		}

		tracker := cost.NewTracker()
		gen, err := newGenerator(cfg, tracker)
		if err != nil {
			return err
		}

		draft, err := gen.Generate(ctx, *target, schedule.StageEmail)
		if err != nil {
			return eris.Wrapf(err, "regenerate email for %s", target.Name())
		}

		err = src.PersistBatch(ctx, []model.FieldUpdate{
			{ProfileID: rowID, Field: model.FieldDraft, Value: draft},
		})
		if err != nil {
			return eris.Wrap(err, "persist regenerated draft")
		}

		zap.L().Info("draft regenerated",
			zap.String("record", target.Name()),
			zap.Float64("cost_usd", tracker.TotalCost()),
		)
		fmt.Fprintln(os.Stdout, draft)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regenCmd)
}
