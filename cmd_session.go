package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	statex "github.com/tanpawarit/Chative-Document-Assistant/agent/state"
)

var sessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Show the stored checkpoint of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSession,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <session-id>",
	Short: "Delete the stored checkpoint of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.store.Load(ctx, args[0])
	if errors.Is(err, statex.ErrCheckpointNotFound) {
		return fmt.Errorf("session %q has no stored checkpoint", args[0])
	}
	if err != nil {
		return err
	}
	printSession(cmd.OutOrStdout(), st)
	return nil
}

// runForget deletes directly through the store; turns in other processes
// are not coordinated with.
func runForget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Delete(ctx, args[0]); err != nil {
		return fmt.Errorf("forget session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Session %s forgotten.\n", args[0])
	return nil
}
