// Package cli holds the invoicer command tree.
package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// serves the web application.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "invoicer",
		Short: "Invoices, a status board and monthly income",
		Long: `Invoicer serves the invoice web application and its JSON API.

Running invoicer without arguments starts the HTTP server.
Use subcommands for migrations, demo data, the terminal board and jobs.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newSeedCommand())
	root.AddCommand(newBoardCommand())
	root.AddCommand(newJobsCommand())
	return root
}

// Execute runs the root command until it finishes or SIGINT/SIGTERM arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}
