package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomcms/loom/migrate"
	"github.com/loomcms/loom/postgres"
)

func openRunner() (*migrate.Runner, *postgres.DB, error) {
	db, err := postgres.Open(databaseURL())
	if err != nil {
		return nil, nil, err
	}
	return migrate.NewRunner(db, os.DirFS(migrationsDir())), db, nil
}

func migrateCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, revert, and inspect database migrations",
	}
	root.AddCommand(migrateUpCmd())
	root.AddCommand(migrateDownCmd())
	root.AddCommand(migrateStatusCmd())
	root.AddCommand(migrateFreshCmd())
	root.AddCommand(migrateResetCmd())
	root.AddCommand(migrateGenerateCmd())
	return root
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every unapplied migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, db, err := openRunner()
			if err != nil {
				return err
			}
			defer db.Close()
			ran, err := runner.Up(cmd.Context())
			if err != nil {
				return err
			}
			for _, v := range ran {
				fmt.Printf("applied %s\n", v)
			}
			if len(ran) == 0 {
				fmt.Println("nothing to apply")
			}
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Revert the most recently applied migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, db, err := openRunner()
			if err != nil {
				return err
			}
			defer db.Close()
			version, err := runner.Down(cmd.Context())
			if err != nil {
				return err
			}
			if version == "" {
				fmt.Println("nothing to revert")
				return nil
			}
			fmt.Printf("reverted %s\n", version)
			return nil
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List every known migration and whether it is applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, db, err := openRunner()
			if err != nil {
				return err
			}
			defer db.Close()
			report, err := runner.StatusReport(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range report {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%s\t%s\t%s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
}

func migrateFreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fresh",
		Short: "Revert every migration then re-apply from scratch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, db, err := openRunner()
			if err != nil {
				return err
			}
			defer db.Close()
			ran, err := runner.Fresh(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("applied %d migrations\n", len(ran))
			return nil
		},
	}
}

func migrateResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Revert every applied migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, db, err := openRunner()
			if err != nil {
				return err
			}
			defer db.Close()
			reverted, err := runner.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("reverted %d migrations\n", len(reverted))
			return nil
		},
	}
}

// migrateGenerateCmd diffs two schema snapshot JSON files (typically
// dumped by the embedding application via engine.Engine.Snapshot) and
// writes the resulting migration file into the migrations directory.
// Operating on snapshot files rather than a live collection registry
// keeps this CLI independent of any particular embedding application's
// Go code (spec section 5, "generate").
func migrateGenerateCmd() *cobra.Command {
	var from, name string
	cmd := &cobra.Command{
		Use:   "generate <to-snapshot.json>",
		Short: "Diff a new schema snapshot against the previous one and write a migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("generate: --name is required")
			}
			var old migrate.Snapshot
			if from != "" {
				data, err := os.ReadFile(from)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(data, &old); err != nil {
					return err
				}
			}
			nextData, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var next migrate.Snapshot
			if err := json.Unmarshal(nextData, &next); err != nil {
				return err
			}

			file, err := migrate.Generate(old, next, name, time.Now())
			if err != nil {
				return err
			}
			if file == nil {
				fmt.Println("no schema changes detected")
				return nil
			}
			if err := os.MkdirAll(migrationsDir(), 0o755); err != nil {
				return err
			}
			marshaled, err := file.Marshal()
			if err != nil {
				return err
			}
			path := filepath.Join(migrationsDir(), file.FileName())
			if err := os.WriteFile(path, marshaled, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "previous schema snapshot JSON file (omit for the first migration)")
	cmd.Flags().StringVar(&name, "name", "", "short label for the migration, e.g. add_posts_featured_flag")
	return cmd
}
