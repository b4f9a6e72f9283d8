package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Document-Assistant/pkg/config"
	logx "github.com/tanpawarit/Chative-Document-Assistant/pkg/logger"
)

var (
	envFile string
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "docassist",
	Short: "Conversational assistant over a business document corpus",
	Long: `docassist answers questions about, summarizes, and computes over
the documents in its corpus. Each session remembers a running summary
and the documents discussed so far.`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: initRuntime,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTTY() {
			return cmd.Help()
		}
		return runChat(cmd, args)
	},
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initRuntime points config loading at --env and reinitializes the logger
// from it, since autoload ran before flags were parsed.
func initRuntime(cmd *cobra.Command, args []string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); err != nil {
		return fmt.Errorf("env file: %w", err)
	}
	configx.SetEnvFile(envFile)

	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		return fmt.Errorf("load log config: %w", err)
	}
	logx.Init(*conf)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Env file to load configuration from (default ./.env)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(auditCmd)
}
