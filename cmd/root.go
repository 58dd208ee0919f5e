// Package cmd assembles the root cobra command, grounded on the
// teacher's own AddEchoCommands/RunE-handler cobra idiom, narrowed from
// its ollama-client subcommand group (assess/status/think, talking to an
// already-running ollama server over HTTP) to this module's own
// lifecycle: serve, healthcheck, and policy verify.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the root command with every subcommand registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "persona-core",
		Short: "Single-user conversational consciousness agent",
		Long:  "Runs or inspects the persona-core consciousness loop: the cognitive pipeline, memory stores, and the spec's HTTP/WebSocket surface.",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newHealthcheckCmd())
	root.AddCommand(newPolicyCmd())

	return root
}

// Execute runs the root command, the single entry point main.go calls.
func Execute() error {
	return NewRootCmd().Execute()
}

func fatalf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
