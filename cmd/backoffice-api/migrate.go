package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fabworks/backoffice/internal/config"
	"github.com/fabworks/backoffice/internal/store"
	"github.com/fabworks/backoffice/pkg/log"
	"github.com/fabworks/backoffice/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Migrating the db")
		defer zap.S().Info("Db migrated")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		return migrateStore(db, s, cfg)
	},
}

// migrateStore prefers the versioned goose migrations when a folder is
// configured and falls back to the model auto migration otherwise.
func migrateStore(db *gorm.DB, s store.Store, cfg *config.Config) error {
	if cfg.Service.MigrationFolder != "" {
		return migrations.MigrateStore(db, cfg.Service.MigrationFolder)
	}
	return s.InitialMigration()
}
