package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"command-pipeline/internal/common/database"
	"command-pipeline/internal/common/ledger"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var purgeExpired bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger and audit tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, rootOpts, purgeExpired)
		},
	}
	cmd.Flags().BoolVar(&purgeExpired, "purge-expired", false, "also delete expired ledger records")

	return cmd
}

func runMigrate(cmd *cobra.Command, rootOpts *RootOptions, purgeExpired bool) error {
	cfg, err := rootOpts.loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.Logging)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("schema up to date", map[string]interface{}{"driver": db.Driver})

	if !purgeExpired {
		return nil
	}
	if cfg.Ledger.Backend != "sql" {
		log.Info("purge skipped, ledger backend expires keys itself", map[string]interface{}{"backend": cfg.Ledger.Backend})
		return nil
	}

	n, err := ledger.NewSQLStore(db, ledger.OptionsFromConfig(cfg.Ledger)).Purge(ctx, time.Now())
	if err != nil {
		return err
	}
	log.Info("expired ledger records purged", map[string]interface{}{"deleted": n})
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired ledger records\n", n)
	return nil
}
