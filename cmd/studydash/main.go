// Package main is the single-binary entrypoint for studydash.
package main

import "github.com/studydash/studydash/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
