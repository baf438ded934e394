package main

import (
	"os"

	"github.com/pilipi-dev/pilipi/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
