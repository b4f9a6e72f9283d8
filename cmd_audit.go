package main

import (
	"fmt"

	"github.com/spf13/cobra"

	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

var auditCmd = &cobra.Command{
	Use:   "audit <session-id>",
	Short: "Show the tool calls recorded for a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudit,
}

func runAudit(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	sink, err := toolx.NewJSONLAuditSink(cfg.ToolsAuditDir)
	if err != nil {
		return err
	}
	entries, err := sink.ReadSession(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tool calls for %s (%d)\n", args[0], len(entries))
	printAudit(out, entries)
	return nil
}
