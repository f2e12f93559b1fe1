// Package main starts the digest tick process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	digestcmd "github.com/ashfield-games/greatwork/internal/cmd/digest"
)

func main() {
	cfg, err := digestcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[DIGEST] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := digestcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run digest: %v", err)
	}
}
