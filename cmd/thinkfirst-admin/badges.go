package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"thinkfirst/internal/app"
)

// awardCmd awards a manually triggered badge
var awardCmd = &cobra.Command{
	Use:   "award <userId> <badgeId>",
	Short: "Award a manually triggered badge",
	Long: `Award a badge whose criteria are only checked on request, such as lifesaver.

The learner must still meet the badge criteria.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			badge, err := a.Badges.AwardManual(ctx, userID, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Awarded %s (%s) to user %d\n", badge.Name, badge.ID, userID)
			return nil
		})
	},
}
