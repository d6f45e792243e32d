package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.0.1"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var envFile string

var rootCmd = &cobra.Command{
	Use:     "carrierbridge",
	Short:   "Carrier Bridge - Colissimo, Mondial Relay and La Poste shipping service",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment variables from this file first")
	rootCmd.AddCommand(serveCmd, trackCmd, relaysCmd, checkCmd)
}
