// -- cmd/worker.go --
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/listforge/listforge/internal/observability"
	"github.com/listforge/listforge/internal/workflow"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the retry scheduler until interrupted.",
	Long: `Starts the background retry loop: every interval it picks up failed
submissions that still have retry budget and re-runs them. Stops cleanly on
SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		scheduler := workflow.NewRetryScheduler(d.store, d.manager, appConfig.Workflow)
		scheduler.Start(cmd.Context())

		logger := observability.GetLogger()
		logger.Info("Worker running.",
			zap.Duration("retry_interval", appConfig.Workflow.RetryInterval))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("Shutdown signal received.", zap.String("signal", sig.String()))

		scheduler.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
