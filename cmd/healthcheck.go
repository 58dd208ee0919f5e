package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newHealthcheckCmd builds "healthcheck": hits a running instance's
// /health endpoint and prints the result, grounded on the teacher's
// EchoStatusHandler (cmd/echo.go) request/decode/print shape, narrowed
// from its ollama-API-client plumbing to a plain http.Client GET.
func newHealthcheckCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check a running instance's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
			if err != nil {
				return err
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fatalf("persona-core not responding at %s: %w", addr, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fatalf("server returned status %d", resp.StatusCode)
			}

			var status map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return err
			}

			fmt.Printf("status:           %v\n", status["status"])
			fmt.Printf("consciousness_id: %v\n", status["consciousness_id"])
			fmt.Printf("is_awake:         %v\n", status["is_awake"])
			fmt.Printf("phi:              %v\n", status["phi"])
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8080", "host:port of the running instance")
	return cmd
}
