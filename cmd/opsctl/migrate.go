package main

import (
	"fmt"

	"pestops-bknd/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := database.CreateSchema(cmd.Context(), e.db); err != nil {
			return err
		}
		e.logr.Info("schema up to date", zap.String("driver", e.cfg.DatabaseDriver))
		fmt.Println("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
