// Command shepherd runs the issue-shepherd MCP server on stdio.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"issueshepherd/server/internal/config"
	"issueshepherd/server/internal/github"
	"issueshepherd/server/internal/gitops"
	"issueshepherd/server/internal/mcp"
	"issueshepherd/server/internal/modules"
	"issueshepherd/server/internal/modules/shepherd"
	"issueshepherd/server/internal/observability"
)

const serverName = "issue-shepherd"

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	var (
		configPath  string
		logFile     string
		logLevel    string
		toolTimeout time.Duration
	)

	root := &cobra.Command{
		Use:     "shepherd",
		Short:   "MCP server for finding and contributing to GitHub issues",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logFile != "" {
				cfg.Log.File = logFile
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := observability.Init(cfg.Log); err != nil {
				return err
			}
			defer observability.Sync()

			return serve(cmd, cfg, toolTimeout)
		},
	}

	root.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	root.Flags().StringVar(&logFile, "log-file", "", "log to this file instead of stderr")
	root.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().DurationVar(&toolTimeout, "timeout", 0, "per-tool execution deadline")
	root.SilenceUsage = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shepherd: %v\n", err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, cfg *config.Config, toolTimeout time.Duration) error {
	client := github.NewClient(cfg.GitHub)
	cloner := gitops.NewGitCloner(cfg.Git)
	modules.RegisterModule(shepherd.New(cfg, client, cloner, cloner))
	modules.SetToolTimeout(toolTimeout)

	if !cfg.Authenticated() {
		fmt.Fprintln(os.Stderr, "shepherd: no GitHub token configured; running with the 60 req/hour anonymous limit")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := mcp.NewHandler(serverName, version)
	return mcp.ServeStdio(ctx, handler, os.Stdin, os.Stdout)
}
