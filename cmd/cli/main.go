// vibechecc-admin is the operator CLI: inspect experiment bucketing,
// crunch significance numbers and poke a running server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibechecc/backend/internal/experiments"
)

var (
	serverAddr string
	authToken  string
)

func main() {
	root := &cobra.Command{
		Use:   "vibechecc-admin",
		Short: "Admin tooling for the vibechecc backend",
	}
	root.PersistentFlags().StringVar(&serverAddr, "addr", "http://localhost:8686", "server base URL")
	root.PersistentFlags().StringVar(&authToken, "token", "", "bearer token for authenticated endpoints")

	root.AddCommand(bucketCmd())
	root.AddCommand(significanceCmd())
	root.AddCommand(healthCmd())
	root.AddCommand(experimentsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bucketCmd shows where a user lands for an experiment without touching the
// server, useful when support asks "why does this user see the old hero".
func bucketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bucket <user-id> <experiment-id>",
		Short: "Show a user's deterministic traffic and variant draws",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, experimentID := args[0], args[1]
			fmt.Printf("traffic bucket: %.6f\n", experiments.TrafficBucket(userID, experimentID))
			fmt.Printf("variant bucket: %.6f\n", experiments.VariantBucket(userID, experimentID))
			return nil
		},
	}
}

func significanceCmd() *cobra.Command {
	var controlN, variantN int
	var controlRate, variantRate, alpha float64

	cmd := &cobra.Command{
		Use:   "significance",
		Short: "Two-proportion z-test over conversion tallies",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := experiments.Significance(
				[]experiments.MetricResult{{VariantID: "control", SampleSize: controlN, ConversionRate: controlRate}},
				[]experiments.MetricResult{{VariantID: "variant", SampleSize: variantN, ConversionRate: variantRate}},
			)
			fmt.Printf("p-value: %.6f\n", p)
			if p > 0 && p < alpha {
				fmt.Printf("significant at alpha=%.3f\n", alpha)
			} else {
				fmt.Printf("not significant at alpha=%.3f\n", alpha)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&controlN, "control-n", 0, "control sample size")
	cmd.Flags().Float64Var(&controlRate, "control-rate", 0, "control conversion rate")
	cmd.Flags().IntVar(&variantN, "variant-n", 0, "variant sample size")
	cmd.Flags().Float64Var(&variantRate, "variant-rate", 0, "variant conversion rate")
	cmd.Flags().Float64Var(&alpha, "alpha", 0.05, "significance level")
	cmd.MarkFlagRequired("control-n")
	cmd.MarkFlagRequired("control-rate")
	cmd.MarkFlagRequired("variant-n")
	cmd.MarkFlagRequired("variant-rate")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := get("/health")
			if err != nil {
				return err
			}
			fmt.Println(string(body))
			return nil
		},
	}
}

func experimentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiments",
		Short: "Manage experiment configs on a running server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := get("/api/v1/experiments")
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "push <config.json>",
		Short: "Register or replace an experiment from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var exp experiments.Experiment
			if err := json.Unmarshal(raw, &exp); err != nil {
				return fmt.Errorf("parse config: %w", err)
			}
			if err := exp.Validate(); err != nil {
				return err
			}
			body, err := post("/api/v1/experiments", raw)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	})

	return cmd
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func get(path string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, serverAddr+path, nil)
	if err != nil {
		return nil, err
	}
	return do(req)
}

func post(path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, serverAddr+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req)
}

func do(req *http.Request) ([]byte, error) {
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, raw)
	}
	return raw, nil
}

func printJSON(raw []byte) error {
	var pretty map[string]interface{}
	if err := json.Unmarshal(raw, &pretty); err != nil {
		fmt.Println(string(raw))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
