package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"botevents-api/internal/model"
	"botevents-api/internal/persistence"
	"botevents-api/internal/repository"
)

type dbFlags struct {
	driver string
	url    string
}

func (f *dbFlags) register(cmd *cobra.Command) {
	driver := os.Getenv("DATABASE_DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	cmd.Flags().StringVar(&f.driver, "driver", driver, "postgres, sqlite or mysql (default $DATABASE_DRIVER)")
	cmd.Flags().StringVar(&f.url, "url", os.Getenv("DATABASE_URL"), "database URL or path (default $DATABASE_URL)")
}

// open connects through the retrying gateway and applies migrations.
func (f *dbFlags) open(ctx context.Context) (*persistence.Gateway, repository.Store, error) {
	if f.url == "" {
		return nil, nil, fmt.Errorf("--url or DATABASE_URL is required")
	}
	store, err := repository.NewStore(repository.StoreConfig{Driver: f.driver, URL: f.url})
	if err != nil {
		return nil, nil, err
	}

	gw := persistence.NewGateway(store)
	if err := gw.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := gw.Migrate(ctx); err != nil {
		gw.Close()
		return nil, nil, err
	}
	return gw, store, nil
}

func migrateCmd() *cobra.Command {
	var flags dbFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			gw, _, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", flags.driver)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// seedFile is the JSON fixture format accepted by seed.
type seedFile struct {
	Bots    []model.Bot           `json:"bots"`
	Users   []model.User          `json:"users"`
	Catalog []seedCatalog         `json:"catalog"`
	Items   []model.InventoryItem `json:"items"`
}

type seedCatalog struct {
	Name       string           `json:"name"`
	InGameName string           `json:"in_game_name"`
	Values     model.ValueTable `json:"values"`
}

func (f seedFile) fixtures() repository.Fixtures {
	fx := repository.Fixtures{Bots: f.Bots, Users: f.Users, Items: f.Items}
	for _, c := range f.Catalog {
		fx.Catalog = append(fx.Catalog, model.CatalogEntry{Name: c.Name, InGameName: c.InGameName, Values: c.Values})
	}
	return fx
}

func seedCmd() *cobra.Command {
	var flags dbFlags

	cmd := &cobra.Command{
		Use:   "seed <fixtures.json>",
		Short: "Load bots, users, catalog entries and items from a JSON file",
		Long: `Loads fixtures into the database after migrating it. Existing rows are left untouched.

The file holds "bots", "users", "catalog" and "items" arrays. Catalog values are a
3x4 array indexed [regular|neon|mega][nopotion|ride|fly|flyride]; items reference
catalog entries by "in_game_name".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var file seedFile
			if err := json.Unmarshal(raw, &file); err != nil {
				return fmt.Errorf("invalid fixtures file: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			gw, store, err := flags.open(ctx)
			if err != nil {
				return err
			}
			defer gw.Close()

			seeder, ok := store.(repository.Seeder)
			if !ok {
				return fmt.Errorf("driver %s does not support seeding", flags.driver)
			}
			if err := seeder.Seed(ctx, file.fixtures()); err != nil {
				return err
			}

			stats, err := gw.GetStats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded: %d users, %d items\n", stats["total_users"], stats["total_items"])
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
