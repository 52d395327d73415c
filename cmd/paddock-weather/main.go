package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:   "paddock-weather",
		Short: "Weather dashboard for a horse field",
		Long: `paddock-weather fetches current conditions, the forecast and regional
warnings for one field, derives rug advice and a severity score, and serves
the dashboard as an installable page that keeps working offline.`,
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.AddCommand(serve, newRenderCmd(), newAlertsCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the page host with a 10 minute refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newRenderCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Fetch once and write the dashboard as static HTML",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(nil)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.renderOnce(cmd.Context(), output); err != nil {
				return err
			}
			cmd.Printf("Dashboard saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "dashboard.html", "Output HTML file path")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Print the regional warnings feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(nil)
			if err != nil {
				return err
			}
			defer a.close()
			return a.printAlerts(cmd.Context(), cmd.OutOrStdout())
		},
	}
}
