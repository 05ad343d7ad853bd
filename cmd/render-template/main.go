package main

import (
	"os"

	"golazy.dev/lazyrender/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
