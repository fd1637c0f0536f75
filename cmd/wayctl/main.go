package main

import (
	"os"

	"github.com/waypost-systems/waypost/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
