package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"thinkfirst/internal/app"
)

var exportOutput string

// exportCmd writes a JSON backup of all learner state
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the database to a JSON file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outputPath := exportOutput
		if outputPath == "" {
			outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
		}

		// Ensure directory exists
		if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Backup.Export(ctx, outputPath); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			info, err := os.Stat(outputPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s (%.2f KB)\n", outputPath, float64(info.Size())/1024)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
}
