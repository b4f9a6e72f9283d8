package main

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	askSession string
	askUser    string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run a single turn and print the reply",
	Long: `Run a single turn. Without --session each call starts a new
session; pass the printed session id to continue it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := strings.TrimSpace(askSession)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res, err := a.orch.ProcessTurn(ctx, sessionID, askUser, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if askJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(out, res, true)
	cmd.PrintErrf("session: %s\n", res.SessionID)
	return nil
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id to continue")
	askCmd.Flags().StringVar(&askUser, "user", "", "User id recorded on the session")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full turn result as JSON")
}
