// Package cmd implements cmsctl, the operational CLI for the migration
// runner and job worker (spec sections 4.7/5): it never touches an
// embedding application's collection registry, only the generated
// migration files on disk and the configured broker, so it stays usable
// regardless of which collections an embedding app declares.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set via -ldflags at release build time.
var Version = "development"

var rootCmd = &cobra.Command{
	Use:          "cmsctl",
	Short:        "Operational CLI for a loom-embedded CMS instance",
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	viper.SetEnvPrefix("CMSCTL")
	viper.AutomaticEnv()
	bindConnectionFlags(rootCmd)
}

// Execute runs the root command.
func Execute() error {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(jobsCmd())
	return rootCmd.Execute()
}
