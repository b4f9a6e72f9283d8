package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"

	"github.com/tanpawarit/Chative-Document-Assistant/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Document-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
	toolx "github.com/tanpawarit/Chative-Document-Assistant/agent/tool"
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func printResult(w io.Writer, res *orchestrator.TurnResult, verbose bool) {
	fmt.Fprintln(w, res.Reply)
	if res.Response != nil && res.Response.Degraded {
		fmt.Fprintln(w, "(low confidence)")
	}
	if !verbose {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  intent:     %s (%.2f)\n", res.Intent.Type, res.Intent.Confidence)
	if res.Response != nil {
		fmt.Fprintf(w, "  confidence: %.2f\n", res.Response.Confidence())
		fmt.Fprintf(w, "  sources:    %s\n", joinOrNone(res.Response.Sources()))
		if calc := res.Response.Calculation; calc != nil && calc.Expression != "" {
			fmt.Fprintf(w, "  expression: %s\n", calc.Expression)
		}
	}
	fmt.Fprintf(w, "  tools:      %s\n", joinOrNone(res.ToolsUsed))
	fmt.Fprintf(w, "  documents:  %s\n", joinOrNone(res.ActiveDocuments))
	fmt.Fprintf(w, "  turn:       %d\n", res.Turn)
}

func printSession(w io.Writer, st *statex.TurnState) {
	fmt.Fprintf(w, "Session %s\n", st.SessionID)
	if st.UserID != "" {
		fmt.Fprintf(w, "User:      %s\n", st.UserID)
	}
	fmt.Fprintf(w, "Turns:     %d\n", st.Turn)
	fmt.Fprintf(w, "Updated:   %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Documents: %s\n", joinOrNone(st.ActiveDocuments))
	if st.Intent != nil {
		fmt.Fprintf(w, "Last intent: %s\n", st.Intent.Type)
	}
	fmt.Fprintln(w)
	if st.ConversationSummary == "" {
		fmt.Fprintln(w, "No summary yet.")
		return
	}
	fmt.Fprintln(w, st.ConversationSummary)
}

func printDocuments(w io.Writer, docs []toolx.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents in corpus.")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "  %-6s  %-10s  %s", d.ID, d.Type, d.Title)
		if amount, ok := d.Amount(); ok {
			fmt.Fprintf(w, "  (%.2f)", amount)
		}
		fmt.Fprintln(w)
	}
}

func printAudit(w io.Writer, entries []toolx.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No tool calls recorded.")
		return
	}
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = "error: " + e.Error
		}
		fmt.Fprintf(w, "  %s  %-16s  %s  %s\n", e.Timestamp.Format("15:04:05"), e.Tool, formatArgs(e.Args), status)
	}
}

// describeError turns a turn failure into the line shown to the user.
func describeError(err error) string {
	if contractx.KindOf(err) == "" {
		return "Error: " + err.Error()
	}
	return err.Error()
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(args))
	for _, key := range []string{"document_id", "expression"} {
		if v, ok := args[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
	}
	if len(parts) == 0 {
		for _, k := range slices.Sorted(maps.Keys(args)) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
		}
	}
	return strings.Join(parts, " ")
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
