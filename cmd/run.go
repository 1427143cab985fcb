// -- cmd/run.go --
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/reflow/internal/harness"
	"github.com/xkilldash9x/reflow/internal/observability"
	"github.com/xkilldash9x/reflow/internal/session"
	"github.com/xkilldash9x/reflow/internal/supervisor"
	"github.com/xkilldash9x/reflow/internal/views"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch the target application and run the layout-verification scenario",
	Long: `Launches (or attaches to) the target application, connects to its remote
debugging endpoint, drives the split-screen scenario, and captures screenshot
evidence at each checkpoint.

Exits 0 when the scenario completes, including the benign case where no
secondary view ever appeared. Exits 1 on launch, connection, or
host-discovery failure, or when a checkpoint could not be written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		// Flag overrides with empty-string defaults are applied here rather
		// than bound into viper, where a default would shadow the config.
		if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
			cfg.Connect.Endpoint = v
		}
		if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
			cfg.Artifacts.Dir = v
		}

		// Operator interrupt routes through the same context cancellation,
		// and therefore the same teardown path, as normal completion.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := harness.Run(ctx, cfg, cmd.OutOrStdout(), logger)
		if err != nil {
			switch {
			case errors.Is(err, supervisor.ErrLaunch):
				logger.Error("Target application could not be launched.", zap.Error(err))
			case errors.Is(err, session.ErrConnection):
				logger.Error("Both connection strategies failed.", zap.Error(err))
			case errors.Is(err, views.ErrHostNotFound):
				logger.Error("No browsing context present; the target did not start correctly.", zap.Error(err))
			default:
				logger.Error("Run failed.", zap.Error(err))
			}
			// Cobra has already printed usage-level errors; keep the exit
			// path uniform by signalling through Execute's error handling.
			cmd.SilenceUsage = true
			return err
		}

		if result.Failed {
			cmd.SilenceUsage = true
			return errors.New("run completed with a failed mandatory checkpoint")
		}

		logger.Info("Run completed.",
			zap.Bool("split_detected", result.Outcome.SplitDetected),
			zap.Bool("split_timed_out", result.Outcome.SplitTimedOut))
		return nil
	},
}

func init() {
	runCmd.Flags().String("endpoint", "", "debugging endpoint to attach to (overrides config)")
	runCmd.Flags().String("output-dir", "", "artifact output directory (overrides config)")
	runCmd.Flags().Bool("skip-launch", false, "attach to an already-running instance instead of launching one")

	// skip-launch participates in config validation, so it must be visible
	// to viper before Load runs.
	_ = viper.BindPFlag("target.skip_launch", runCmd.Flags().Lookup("skip-launch"))

	rootCmd.AddCommand(runCmd)
}
