// Package main is the entry point for tfc, the team flex credits reporter.
package main

import "github.com/j-veylop/team-flex-credits/internal/cli"

func main() {
	cli.Execute()
}
