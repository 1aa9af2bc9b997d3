// -- cmd/submit.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/listforge/listforge/api/schemas"
	"github.com/listforge/listforge/internal/observability"
)

var (
	submitProductID    int64
	submitDirectoryIDs []int64
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a product to one or more directories.",
	Long: `Runs the submission workflow for the given product against each
directory: login when required, form detection, field mapping, fill and
submit. Multiple directories run concurrently up to the configured limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(submitDirectoryIDs) == 0 {
			return fmt.Errorf("at least one --directory is required")
		}

		d, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		logger := observability.GetLogger()

		if len(submitDirectoryIDs) == 1 {
			sub, err := d.manager.SubmitToDirectory(cmd.Context(), submitProductID, submitDirectoryIDs[0])
			if err != nil {
				return err
			}
			printOutcome(cmd, sub)
			return nil
		}

		results, err := d.manager.BulkSubmit(cmd.Context(), submitProductID, submitDirectoryIDs)
		if err != nil {
			return err
		}

		var succeeded int
		for _, sub := range results {
			printOutcome(cmd, sub)
			if sub.Status == schemas.SubmissionSubmitted {
				succeeded++
			}
		}
		logger.Info("Bulk run complete.",
			zap.Int("requested", len(submitDirectoryIDs)),
			zap.Int("attempted", len(results)),
			zap.Int("succeeded", succeeded))
		cmd.Printf("%d/%d submissions succeeded (%d attempted)\n",
			succeeded, len(submitDirectoryIDs), len(results))
		return nil
	},
}

func printOutcome(cmd *cobra.Command, sub *schemas.Submission) {
	switch sub.Status {
	case schemas.SubmissionSubmitted:
		cmd.Printf("submission %d -> directory %d: submitted", sub.ID, sub.DirectoryID)
		if sub.ListingURL != "" {
			cmd.Printf(" (%s)", sub.ListingURL)
		}
		cmd.Println()
	default:
		cmd.Printf("submission %d -> directory %d: %s (%s)\n",
			sub.ID, sub.DirectoryID, sub.Status, sub.ResponseMessage)
	}
}

func init() {
	submitCmd.Flags().Int64VarP(&submitProductID, "product", "p", 0, "product id to submit")
	submitCmd.Flags().Int64SliceVarP(&submitDirectoryIDs, "directory", "d", nil, "directory id (repeatable)")
	_ = submitCmd.MarkFlagRequired("product")

	rootCmd.AddCommand(submitCmd)
}
