// cmd/devtelemetry/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/agent"
	"github.com/irfanuddinahmad/mosyle-dev-telemetry/internal/config"
)

var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "devtelemetry",
	Short: "Host-resident developer activity telemetry agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return agent.Run(ctx, cfgPath)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run a single collection cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		a, err := agent.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Cycle(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local agent state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		return agent.Status(cmd.OutOrStdout(), cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "devtelemetry %s\n", version)
	},
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".devtelemetry", "config.yaml")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultConfigPath(), "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
