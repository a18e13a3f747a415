package main

import (
	"fmt"
	"os"

	"github.com/alphazee/agencyhub/backend/internal/config"
	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var Version = "dev"

var configPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "agencyctl",
		Short:   "Operator tooling for the agencyhub backend",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"), "path to config.yaml")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(createAdminCmd())
	rootCmd.AddCommand(purgeNotificationsCmd())
	rootCmd.AddCommand(markOverdueCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Server.LogLevel)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openDB connects and brings the schema up to date the same way the server does.
func openDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := models.Open(&cfg.Database, "release")
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if err := models.Migrate(db, &cfg.Database); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, closeFn, nil
}
