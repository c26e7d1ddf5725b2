// Command msed runs the Moral Spectrometry Engine as a standalone
// process: REST + MCP surfaces over a PostgreSQL-backed session store.
// All configuration comes from the environment; see internal/config.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veritas-labs/mse"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	engine, err := mse.New(mse.WithLogger(logger), mse.WithVersion(version()))
	if err != nil {
		logger.Error("failed to initialize mse engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Run(ctx); err != nil {
		logger.Error("mse engine exited with error", "error", err)
		os.Exit(1)
	}
}

// buildVersion is overridden at build time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

func version() string {
	return buildVersion
}
