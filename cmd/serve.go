package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var (
	port     int
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Start the HTTP web server with HTMX interface.

The web server provides a browser-based district search with the same
dropdown and paginated school table as the TUI, plus JSON API endpoints:

  GET /api/districts?q=Lincoln
  GET /api/districts/{leaid}/schools?page=1`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(cmd)
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
}

func runServe(cmd *cobra.Command) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		HandleError(err, "Failed to load configuration")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = port
	}

	fmt.Printf("Starting District Finder web server...\n")
	fmt.Printf("Backend: %s\n", cfg.Backend)
	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("Port: %d\n\n", cfg.Port)

	if err := StartServer(cfg); err != nil {
		log.Fatalf("Server failed: %v\n", err)
	}
}
