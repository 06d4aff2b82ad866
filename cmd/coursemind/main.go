// Package main provides the entry point for the coursemind CLI.
package main

import (
	"os"

	"github.com/coursemind/coursemind/cmd/coursemind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
