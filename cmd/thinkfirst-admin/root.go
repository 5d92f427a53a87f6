package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"thinkfirst/internal/app"
	"thinkfirst/internal/config"
	"thinkfirst/internal/logging"
)

var verbose bool

// rootCmd is the admin tool entry point
var rootCmd = &cobra.Command{
	Use:   "thinkfirst-admin",
	Short: "Operate a ThinkFirst deployment",
	Long: `Administrative commands for the ThinkFirst streak and badge engine.

Configuration is read from the environment (and .env), the same as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level to stderr")
	rootCmd.AddCommand(grantCmd, creditCmd, awardCmd, exportCmd, tokenCmd)
}

// withApp loads configuration, opens the application and closes it after fn returns
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()

	logger := zap.NewNop()
	if verbose {
		l, err := logging.New(cfg.Env)
		if err != nil {
			return err
		}
		logger = l
	}
	defer logger.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
