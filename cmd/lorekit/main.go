// Package main provides the entry point for the lorekit CLI.
package main

import (
	"os"

	"github.com/fablekit/lorekit/cmd/lorekit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
