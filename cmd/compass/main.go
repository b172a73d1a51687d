// Package main is the entry point for the compass CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/compass/internal/cli"

	// Register warehouse adapters.
	_ "github.com/leapstack-labs/compass/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/compass/pkg/adapters/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
