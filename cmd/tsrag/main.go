// Package main is the tsrag CLI entry point.
package main

import "github.com/hyperjump/tsrag/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}
