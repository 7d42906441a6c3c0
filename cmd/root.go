package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agentindex/ami-cli/internal/config"
	"github.com/agentindex/ami-cli/internal/model"
	"github.com/agentindex/ami-cli/internal/profile"
	"github.com/agentindex/ami-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ami",
	Short: "Agent Maturity Index toolkit",
	Long:  "Validates, hashes, and version-controls AMI assessments, evaluates compliance profiles, and runs the submission review workflow.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "ami.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// loadMethodologyData reads the source catalog and rubrics configured
// under data.*. Missing files degrade to nil, which skips the checks
// that need them.
func loadMethodologyData() (model.SourceCatalog, model.Rubrics) {
	var catalog model.SourceCatalog
	if c, err := profile.LoadSourceCatalog(cfg.Data.SourceCatalogPath); err == nil {
		catalog = c
	} else {
		zap.L().Debug("source catalog unavailable", zap.String("path", cfg.Data.SourceCatalogPath), zap.Error(err))
	}

	var rubrics model.Rubrics
	if r, err := profile.LoadRubrics(cfg.Data.MetaPath); err == nil {
		rubrics = r
	} else {
		zap.L().Debug("rubrics unavailable", zap.String("path", cfg.Data.MetaPath), zap.Error(err))
	}

	return catalog, rubrics
}
