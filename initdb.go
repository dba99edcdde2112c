package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the events table and its index, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			bunDB, err := openDatabase(ctx, cfg, log)
			if err != nil {
				log.Error("DATABASE", fmt.Sprintf("Schema setup failed: %v", err))
				return err
			}
			defer bunDB.Close()

			log.Info("DATABASE", "✅ Database initialized")
			return nil
		},
	}
}
