// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for compilerd.
// It implements the compiler service (serve), a negotiation client that answers the
// service's dependency requests from local files and databases (compile), and
// helpers to store connection credentials (connect), using the Cobra CLI framework.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"compilerd/service/internal/config"
	"compilerd/service/internal/logging"
	"compilerd/service/internal/resolver"
)

var (
	showVersion bool
	cfgFile     string

	// cfg and logger are set by the root command before any subcommand runs
	cfg    *config.Config
	logger = zap.NewNop()

	// flagKeys maps flag names to the config keys they override
	flagKeys = map[string]string{
		"log-level":  "log.level",
		"log-format": "log.format",
	}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "compilerd",
	Short: "Model compiler service and negotiation client",
	Long: `compilerd hosts the Compiler gRPC service, which compiles semantic model documents
into SQL by negotiating missing documents, table schemas and SQL block schemas with
its client, and a client that answers those requests from local files and databases.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(config.Options{File: cfgFile, Flags: cmd.Flags(), FlagKeys: flagKeys})
		if err != nil {
			return err
		}
		log, err := logging.New(c.Log.Level, c.Log.Format)
		if err != nil {
			return err
		}
		cfg, logger = c, log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("compilerd %s\n", Version)
			return nil
		}
		// If no flag is set, show help
		return cmd.Help()
	},
}

// Execute runs the CLI application.
// It executes the root command and handles any errors that occur during execution.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		var failure *resolver.CompileFailure
		if !errors.As(err, &failure) {
			// compile failures were already printed with their problems
			pterm.Error.Println(logging.Mask(err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/compilerd/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format: json or console")
}
