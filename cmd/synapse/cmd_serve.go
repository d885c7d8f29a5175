package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/synapsegraph/synapse/internal/restapi"
)

var serveShutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
}

func runServe() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, cfg, err := openEngine(ctx)
	if err != nil {
		fatalf("%v", err)
	}
	defer eng.Close(context.Background())

	if !cfg.RestAPI.Enabled {
		fatalf("rest_api.enabled is false in configuration")
	}

	server := restapi.NewServer(eng, cfg)
	fmt.Println("Starting synapse REST API. Press Ctrl+C to stop.")
	if err := server.StartWithContext(ctx, serveShutdownTimeout); err != nil {
		fatalf("serving: %v", err)
	}
}
