package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed project types and default system settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := models.Seed(db); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account, or promote an existing user",
		Long: `Create a local admin account with the given credentials.

When the email already belongs to a user, that user is promoted to
admin and the password is left unchanged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			if !utils.ValidEmail(email) {
				return fmt.Errorf("invalid email %q", email)
			}
			if problem := utils.PasswordProblem(password); problem != "" {
				return errors.New(problem)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, closeDB, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer closeDB()

			// No mail goes out for operator-created accounts
			queue := services.NewSyncQueue()
			queue.SetProcessor(func(context.Context, *services.EmailTask) error { return nil })
			defer queue.Close()
			mailer := services.NewMailer(queue, cfg.App.FrontendURL, cfg.Business.Currency)
			auth := services.NewAuthService(db, &cfg.JWT, services.NewLDAPService(&cfg.LDAP), mailer)

			user, created, err := auth.CreateAdminIfNotExists(email, password, firstName, lastName)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (%s)\n", user.Email, user.ID)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s is now an admin (%s)\n", user.Email, user.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&firstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "User", "last name")
	return cmd
}
