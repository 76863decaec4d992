package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerlane/invoicer/internal/apiclient"
	"github.com/ledgerlane/invoicer/internal/tui"
)

func newBoardCommand() *cobra.Command {
	var (
		server   string
		email    string
		password string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the invoice board in the terminal",
		Long:  "Signs in to a running invoicer server and shows the status board. Moves are saved through the JSON API.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			location, err := time.LoadLocation(timezone)
			if err != nil {
				return err
			}
			client, err := apiclient.New(server, nil)
			if err != nil {
				return err
			}
			if err := client.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			return tui.Run(cmd.Context(), client, location)
		},
	}
	cmd.Flags().StringVar(&server, "server", envOr("INVOICER_URL", "http://localhost:8080"), "invoicer server base URL")
	cmd.Flags().StringVar(&email, "email", envOr("DEMO_EMAIL", "demo@invoicer.local"), "sign-in email")
	cmd.Flags().StringVar(&password, "password", envOr("DEMO_PASSWORD", "demo12345"), "sign-in password")
	cmd.Flags().StringVar(&timezone, "timezone", envOr("APP_TIMEZONE", "UTC"), "timezone that decides which invoices are due today")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
