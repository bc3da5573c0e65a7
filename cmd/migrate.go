package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create every report table",
	Long:  "Creates the schemas and tables of all known reports in dependency order. Existing tables are checked for drift.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Catalog.Tables().EnsureAll(ctx, e.Store); err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("migrations complete",
			zap.String("component", "migrate"),
			zap.String("driver", cfg.Store.Driver),
			zap.Int("tables", len(e.Catalog.Tables().All())),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
