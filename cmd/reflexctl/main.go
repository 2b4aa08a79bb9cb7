// Command reflexctl drives a reflex server from the terminal.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Harshitk-cp/reflex/internal/buildconfig"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	server  string
	token   string
	timeout time.Duration
	asJSON  bool
}

func main() {
	envFile := os.Getenv("REFLEX_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "reflexctl",
		Short:         "Inspect and drive a reflex thought processor",
		Version:       buildconfig.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultServer := os.Getenv("REFLEX_URL")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "reflex server base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("API_TOKEN"), "bearer token for /v1 routes")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON responses")

	client := func() *apiClient { return newAPIClient(opts.server, opts.token, opts.timeout) }

	root.AddCommand(
		newThoughtCmd(opts, client),
		newRuleCmd(opts, client),
		newEngineCmd(opts, client),
		newTaskCmd(client),
		newRespondCmd(client),
		newMemoryCmd(opts, client),
	)
	return root
}
