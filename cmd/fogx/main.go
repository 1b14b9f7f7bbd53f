// Package main is the entry point for the fogx CLI binary.
package main

import (
	"os"

	cli "github.com/KeplerC/fog-rtx/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
