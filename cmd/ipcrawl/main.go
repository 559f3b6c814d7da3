package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ipcrawl/internal/app"

	"github.com/charmbracelet/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal("application terminated", "error", err)
	}
}
