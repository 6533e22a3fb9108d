package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/invoicepipe/invoicepipe/cmd/invoicepipe/cli"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	if err := cli.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
