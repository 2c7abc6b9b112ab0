// Package main plays the in-game demo scene driven by a tickfsm state machine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ingamecmd "github.com/tobbstr/tickfsm/internal/cmd/ingame"
)

func main() {
	cfg, err := ingamecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ingamecmd.Run(ctx, cfg, os.Stderr); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
