package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomcms/loom/jobs"
)

// jobsCmd groups the job-broker commands. It runs no consumer loop and
// carries no job Definitions of its own: an embedding application
// registers its own jobs.Registry and calls Registry.Listen directly,
// since job handlers are application code. The one handler this library
// itself owns, the search indexer's "index-records" job, is registered by
// engine.New when search is configured; an application that wants a
// standalone worker process imports engine, builds its Engine, and calls
// Engine.Jobs.Listen(ctx) itself. The only subcommand, ping, is a thin
// smoke-test entry point that verifies broker connectivity.
func jobsCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and drive the job queue broker",
	}
	root.AddCommand(jobsPingCmd())
	return root
}

func jobsPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify the configured AMQP broker is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			adapter := jobs.NewAMQPAdapter(amqpURL())
			defer adapter.Close()
			if _, err := adapter.RunOnce(cmd.Context(), nil); err != nil {
				return fmt.Errorf("amqp: %w", err)
			}
			fmt.Println("connected")
			return nil
		},
	}
}
