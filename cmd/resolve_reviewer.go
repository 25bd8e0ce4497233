/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mautops/qms-workflow/internal/container"
	"github.com/mautops/qms-workflow/internal/database"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// resolveReviewerCmd represents the resolve-reviewer command
var resolveReviewerCmd = &cobra.Command{
	Use:   "resolve-reviewer <user-id>",
	Short: "Show which reviewer a submission by the user would be assigned to",
	Long: `Run the reviewer lookup chain for a user without submitting anything:
parent position holder, department head, administrator, then any other
active user. Prints the chosen reviewer and the tier that matched, which
helps diagnose gaps in the organization data.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || userID == 0 {
			return fmt.Errorf("invalid user id %q", args[0])
		}

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}()

		ctx := cmd.Context()
		org := repository.NewOrganizationRepository(db)
		user, err := org.FindUserByID(ctx, uint(userID))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d not found", userID)
			}
			return err
		}

		resolver := workflow.NewSupervisorResolver(container.ResolverConfig(cfg.Workflow))
		res, err := resolver.Resolve(ctx, org, user.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "applicant: %d %s\n", user.ID, user.DisplayName())
		if !res.Found() {
			fmt.Fprintln(out, "reviewer:  none (no active user can review, contact an administrator)")
			return nil
		}
		fmt.Fprintf(out, "reviewer:  %d %s\n", res.Candidate.ID, res.Candidate.DisplayName)
		fmt.Fprintf(out, "tier:      %s\n", res.Tier)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveReviewerCmd)
}
