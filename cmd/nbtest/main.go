package main

import (
	"fmt"

	"github.com/fort-nix/nbtest/internal/cli"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cli.Execute(fmt.Sprintf("%s (commit %s)", version, commit))
}
