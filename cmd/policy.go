package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/echocog/persona-core/internal/policy"
)

// newPolicyCmd builds "policy verify": the offline version of the boot
// check runServe performs, useful for confirming the binary's pinned
// rule hash matches the canonical rule before ever connecting to Dgraph
// or Redis.
func newPolicyCmd() *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the Policy Guard",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the pinned rule hash matches the canonical rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			guard := policy.NewGuard()
			if err := guard.Verify(); err != nil {
				return fatalf("policy verification failed: %w", err)
			}
			fmt.Println("policy guard verified: pinned hash matches the canonical rule")
			return nil
		},
	}

	policyCmd.AddCommand(verifyCmd)
	return policyCmd
}
