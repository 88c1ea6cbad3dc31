package cli

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/msi-gate/assistant/internal/store"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is not configured")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		purged, err := store.NewConversations(pool).PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired conversations\n", purged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}
