package main

import (
	"os"

	"github.com/cheribuild/cheribuild/pkg/cli"
)

// Version is overridden at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := cli.Execute(Version); err != nil {
		os.Exit(1)
	}
}
