package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"thinkfirst/internal/app"
)

var grantConcurrency int

// grantCmd applies the monthly freeze grant to every learner
var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Apply the monthly freeze grant to all learners",
	Long: `Apply the monthly freeze grant to every learner and top up family pools.

Learners already granted this month are skipped, so the command is safe to re-run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if grantConcurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			summary, err := a.Freezes.GrantAll(ctx, grantConcurrency)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
				return err
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d grants failed", summary.Failed, summary.Users)
			}
			return nil
		})
	},
}

// creditCmd adds personal freezes to one learner
var creditCmd = &cobra.Command{
	Use:   "credit <userId> <count>",
	Short: "Add personal freezes to a learner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", args[1], err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			state, err := a.Freezes.CreditFreezes(ctx, userID, n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), state)
		})
	},
}

func init() {
	grantCmd.Flags().IntVar(&grantConcurrency, "concurrency", 4, "Number of learners granted in parallel")
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
