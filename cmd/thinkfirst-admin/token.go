package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"thinkfirst/internal/config"
	"thinkfirst/internal/security"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

// tokenCmd issues an admin bearer token signed with ADMIN_JWT_SECRET
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin bearer token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		auth := security.NewAdminAuth(config.Load().AdminJWTSecret)
		if !auth.Enabled() {
			return fmt.Errorf("ADMIN_JWT_SECRET is not set")
		}
		token, err := auth.IssueToken(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Token subject recorded in server logs")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}
