package main

import (
	"os"

	"github.com/simonhull/apiport/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
