package main

import (
	"context"
	"flag"
	"os"

	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
	"github.com/louisbranch/proving.grounds/internal/platform/config"
	"github.com/louisbranch/proving.grounds/internal/tools/hmackey"
)

func main() {
	cfg, err := hmackey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	entrypoint.Main(entrypoint.ServiceHMACKey, func(context.Context) error {
		return hmackey.Run(cfg, os.Stdout, nil)
	})
}
