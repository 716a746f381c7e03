package main

import (
	"context"
	"flag"
	"os"

	arenacmd "github.com/louisbranch/proving.grounds/internal/cmd/arena"
	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
	"github.com/louisbranch/proving.grounds/internal/platform/config"
)

func main() {
	cfg, err := arenacmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	entrypoint.Main(entrypoint.ServiceArena, func(ctx context.Context) error {
		return arenacmd.Run(ctx, cfg, os.Stdout)
	})
}
