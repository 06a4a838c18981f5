// Artbox - local-first image archive with cloud reconciliation.
//
// Every generated image lives in a local store that works fully offline;
// an optional cloud archive holds a quota-bounded subset and keeps tags
// consistent across devices.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/artbox-app/artbox/internal/cli"
	"github.com/artbox-app/artbox/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	telemetryClient := telemetry.New()
	defer telemetryClient.Close()

	if err := cli.Execute(ctx, telemetryClient); err != nil {
		os.Exit(1)
	}
}
