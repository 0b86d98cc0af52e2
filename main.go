// Package main is the entry point for the guisu CLI application.
// It initializes all subcommands and executes the root command.
package main

import (
	"github.com/guisu-dev/guisu/cmd"
	_ "github.com/guisu-dev/guisu/cmd/add"
	_ "github.com/guisu-dev/guisu/cmd/apply"
	_ "github.com/guisu-dev/guisu/cmd/cat"
	_ "github.com/guisu-dev/guisu/cmd/diffcmd"
	_ "github.com/guisu-dev/guisu/cmd/edit"
	_ "github.com/guisu-dev/guisu/cmd/hookscmd"
	_ "github.com/guisu-dev/guisu/cmd/state"
	_ "github.com/guisu-dev/guisu/cmd/status"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}
