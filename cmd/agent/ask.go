package main

import (
	"encoding/json"
	"fmt"
	"io"

	"mlops-agent/internal/models"

	"github.com/spf13/cobra"
)

// demoQueries run when ask is called without arguments.
var demoQueries = []string{
	"What's the COVID-19 situation in the United States with 100000 cases and 2000 deaths?",
	"Is customer CUST_001 likely to churn? They've been with us for 24 months and pay $85.50/month.",
}

func newAskCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask [query...]",
		Short: "Answer one or more queries and print the responses",
		Example: `  agent ask "Is customer CUST_042 likely to churn? They pay $70/month."
  agent ask --json "COVID-19 outlook for Brazil with 5000 deaths"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			queries := args
			if len(queries) == 0 {
				queries = demoQueries
			}

			a := newApp(cmd.Context(), cfg)
			defer a.close()

			out := cmd.OutOrStdout()
			for _, q := range queries {
				resp, err := a.pipeline.Process(cmd.Context(), q)
				if err != nil {
					return err
				}
				if err := printResponse(out, q, resp, asJSON); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func printResponse(w io.Writer, query string, resp *models.AgentResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "Query: %s\n", query)
	fmt.Fprintf(w, "Intent: %s (confidence %.2f)\n", resp.Intent, resp.Confidence)
	if resp.ModelUsed != "" {
		fmt.Fprintf(w, "Model: %s\n", resp.ModelUsed)
	}
	_, err := fmt.Fprintf(w, "Response: %s\n\n", resp.Response)
	return err
}
