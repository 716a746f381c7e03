// Command oracle-key generates keypairs for oracles, the match authority
// and players, printed as env exports.
package main

import (
	"context"
	"flag"
	"os"

	entrypoint "github.com/louisbranch/proving.grounds/internal/platform/cmd"
	"github.com/louisbranch/proving.grounds/internal/platform/config"
	"github.com/louisbranch/proving.grounds/internal/tools/oraclekey"
)

func main() {
	cfg, err := oraclekey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	entrypoint.Main(entrypoint.ServiceOracleKey, func(context.Context) error {
		return oraclekey.Run(cfg, os.Stdout, nil)
	})
}
