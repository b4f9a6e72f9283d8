package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

var docsCmd = &cobra.Command{
	Use:   "docs [id]",
	Short: "List corpus documents or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDocs,
}

func runDocs(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}
	corpus, err := toolx.LoadCorpus(cfg.ToolsCorpusPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		fmt.Fprintf(out, "Corpus (%d documents)\n", corpus.Len())
		printDocuments(out, corpus.All())
		return nil
	}

	doc, ok := corpus.Get(args[0])
	if !ok {
		return fmt.Errorf("document %q not found", strings.TrimSpace(args[0]))
	}
	fmt.Fprintln(out, doc.Render())
	return nil
}
