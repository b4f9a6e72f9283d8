package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatUser    string
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Start an interactive session. Pass --session to resume an earlier
conversation; otherwise a new session id is generated.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

const chatHelp = `Commands:
  /docs     list the documents in the corpus
  /session  show the stored session summary
  /forget   delete this session and start a new one
  /help     show this help
  /quit     leave the session`

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()
	interactive := isTTY()

	userID := strings.TrimSpace(chatUser)
	if userID == "" && interactive {
		fmt.Fprint(out, "User id: ")
		if in.Scan() {
			userID = strings.TrimSpace(in.Text())
		}
	}
	if userID == "" {
		userID = "anonymous"
	}

	sessionID := strings.TrimSpace(chatSession)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if interactive {
		fmt.Fprintf(out, "Session %s. Type /help for commands.\n", sessionID)
	}

	for {
		if interactive {
			fmt.Fprint(out, "\n> ")
		}
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}

		// Ctrl-C cancels a running turn; at the prompt it exits as usual.
		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		next, quit := a.handleChatLine(turnCtx, out, sessionID, userID, line)
		stop()
		if quit {
			return nil
		}
		if next != sessionID {
			sessionID = next
			fmt.Fprintf(out, "New session %s.\n", sessionID)
		}
	}
}

// handleChatLine runs one chat command or turn and returns the session to
// continue with. Turn failures are reported inline so the session can go on.
func (a *app) handleChatLine(ctx context.Context, out io.Writer, sessionID, userID, line string) (string, bool) {
	switch strings.ToLower(line) {
	case "/quit", "/exit":
		return sessionID, true
	case "/help":
		fmt.Fprintln(out, chatHelp)
		return sessionID, false
	case "/docs":
		printDocuments(out, a.corpus.All())
		return sessionID, false
	case "/session":
		st, err := a.orch.Session(ctx, sessionID)
		if err != nil {
			fmt.Fprintln(out, "No stored state for this session yet.")
			return sessionID, false
		}
		printSession(out, st)
		return sessionID, false
	case "/forget":
		if err := a.orch.Forget(ctx, sessionID); err != nil {
			fmt.Fprintln(out, describeError(err))
			return sessionID, false
		}
		return uuid.NewString(), false
	}

	res, err := a.orch.ProcessTurn(ctx, sessionID, userID, line)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(out, "Turn cancelled; nothing was saved.")
			return sessionID, false
		}
		log.Debug().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
		fmt.Fprintln(out, describeError(err))
		return sessionID, false
	}
	printResult(out, res, chatVerbose)
	return sessionID, false
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "Session id to resume")
	chatCmd.Flags().StringVar(&chatUser, "user", "", "User id recorded on the session")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Show intent, sources and tools after each reply")
}
