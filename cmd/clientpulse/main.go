package main

import (
	"os"

	"github.com/existflow/clientpulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
