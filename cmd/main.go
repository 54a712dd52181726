package main

import (
	"os"

	"github.com/TNO/knowledge-engine/cmd/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
