// Package main provides tlc, a tool for durable translation cache files.
package main

import (
	"os"

	"github.com/galtl/safecache/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args))
}
