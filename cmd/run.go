package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/schedule"
	"github.com/sells-group/outreach-cli/internal/source"
)

var runCostSummaryPath string

var runCmd = &cobra.Command{
	Use:   "run <source-file>",
	Short: "Process a profile sheet through the research and email stages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		src, err := source.Open(args[0])
		if err != nil {
			return err
		}
		profiles, err := src.Fetch(ctx)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", args[0])
		}
		zap.L().Info("profiles loaded",
			zap.String("source", args[0]),
			zap.Int("profiles", len(profiles)),
		)

		tracker := cost.NewTracker()
		gen, err := newGenerator(cfg, tracker)
		if err != nil {
			return err
		}

		st := initStoreOptional(ctx)
		if st != nil {
			defer st.Close()
		}
		var runID string
		if st != nil {
			if run, err := st.CreateRun(ctx, args[0]); err != nil {
				zap.L().Warn("record run start failed", zap.Error(err))
			} else {
				runID = run.ID
			}
		}

		sch := schedule.New(gen,
			schedule.WithWorkers(cfg.Schedule.Workers),
			schedule.WithSink(schedule.ZapSink{}),
		)
		res, runErr := sch.Run(ctx, profiles, src)

		result := &model.RunResult{
			Profiles:    len(profiles),
			Submitted:   res.Submitted,
			Completed:   res.Completed,
			Failed:      res.Failed,
			Flushed:     runErr == nil && res.Flushed > 0,
			TotalTokens: tracker.TotalTokens(),
			TotalCost:   tracker.TotalCost(),
		}
		status := model.RunStatusComplete
		if runErr != nil {
			status = model.RunStatusFailed
			result.Error = runErr.Error()
		}

		if runID != "" {
			if err := st.FinishRun(cmd.Context(), runID, status, result); err != nil {
				zap.L().Warn("record run result failed", zap.Error(err))
			}
		}

		if runCostSummaryPath != "" {
			if err := tracker.WriteSummary(runCostSummaryPath); err != nil {
				zap.L().Warn("write cost summary failed", zap.Error(err))
			}
		}

		zap.L().Info("run finished",
			zap.Int("submitted", res.Submitted),
			zap.Int("completed", res.Completed),
			zap.Int("failed", res.Failed),
			zap.Int("flushed", res.Flushed),
			zap.Float64("cost_usd", result.TotalCost),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runCostSummaryPath, "cost-summary", "api_cost_summary.json", "path for the cost summary JSON (empty to skip)")
	rootCmd.AddCommand(runCmd)
}
