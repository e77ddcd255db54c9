package main

import (
	"os"

	"github.com/HendryAvila/crosstalk/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
