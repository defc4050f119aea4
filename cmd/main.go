package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/asset-registry/internal/app"
	"github.com/yungbote/asset-registry/internal/platform/shutdown"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("server exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a, err := app.New()
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer a.Close()

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a.Start()
	return a.Run(ctx)
}
