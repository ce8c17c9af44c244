// Package main provides the entry point for the remapflame CLI tool.
// It delegates execution to the cmd package so the command wiring can be
// exercised from tests without going through os.Exit.
package main

import (
	"remapflame/cmd"
)

func main() {
	cmd.Execute()
}
