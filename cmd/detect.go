// -- cmd/detect.go --
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/listforge/listforge/internal/observability"
)

var detectDirectoryID int64

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect and cache a directory's form structure.",
	Long: `Loads the directory's submission page in a headless browser, runs AI
form detection on the captured HTML, and stores the detected structure on
the directory record so later submissions skip detection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer d.close()

		directory, err := d.store.GetDirectory(cmd.Context(), detectDirectoryID)
		if err != nil {
			return err
		}

		session, err := d.sessions.NewSession(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to start browser session: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = session.Close(closeCtx)
		}()

		target := directory.TargetURL()
		capture, err := session.NavigateAndCapture(cmd.Context(), target)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", target, err)
		}

		structure, err := d.detector.Detect(cmd.Context(), capture.HTML, target)
		if err != nil {
			return err
		}
		if len(structure.Fields) == 0 {
			return fmt.Errorf("no form fields detected on %s", target)
		}

		if err := d.store.SaveFormStructure(cmd.Context(), directory.ID, structure, time.Now()); err != nil {
			return err
		}

		observability.GetLogger().Sugar().Infof("Cached form structure for %q", directory.Name)
		cmd.Printf("detected %d fields on %s:\n", len(structure.Fields), target)
		for _, field := range structure.Fields {
			required := ""
			if field.IsRequired {
				required = " (required)"
			}
			cmd.Printf("  %-20s %-10s %s%s\n", field.FieldName, field.FieldType, field.Selector, required)
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().Int64VarP(&detectDirectoryID, "directory", "d", 0, "directory id to analyze")
	_ = detectCmd.MarkFlagRequired("directory")

	rootCmd.AddCommand(detectCmd)
}
