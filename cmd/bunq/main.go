package main

import (
	"os"

	"github.com/goliatone/go-bunq/cmd/bunq/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
