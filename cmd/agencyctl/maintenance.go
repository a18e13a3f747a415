package main

import (
	"errors"
	"fmt"

	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/spf13/cobra"
)

func purgeNotificationsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "purge-notifications",
		Short: "Delete read notifications older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return errors.New("--days must be at least 1")
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

			notify := services.NewNotificationService(db, services.NewSSEHub())
			deleted, err := notify.Purge(days)
			if err != nil {
				return fmt.Errorf("purge notifications: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d notifications removed\n", deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "minimum age in days of read notifications to delete")
	return cmd
}

func markOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark-overdue",
		Short: "Flag sent invoices past their due date as overdue",
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

			settings := services.NewSystemConfigService(db)
			rules := services.NewBusinessRules(cfg.Business, settings, services.NewHolidayService())
			notify := services.NewNotificationService(db, services.NewSSEHub())
			payments := services.NewPaymentService(db, nil, rules, notify)

			marked, err := payments.MarkOverdueInvoices()
			if err != nil {
				return fmt.Errorf("mark overdue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d invoices marked overdue\n", marked)
			return nil
		},
	}
}
