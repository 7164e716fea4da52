package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/render"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage stored sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List participants with stored sessions",
	RunE:  runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <participant-id>",
	Short: "Show a session transcript and draft state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <participant-id>",
	Short: "Delete a participant's session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove sessions whose TTL has elapsed",
	RunE:  runSessionSweep,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionSweepCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no stored sessions")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	styles := render.DefaultStyles()
	fmt.Println(render.SessionSummary(sess, styles))
	fmt.Println()
	fmt.Print(render.Transcript(sess, styles))
	if sess.Draft != nil {
		fmt.Println()
		fmt.Print(render.Plan(sess.Draft, styles))
	}
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted session for %s\n", args[0])
	return nil
}

func runSessionSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	swept, err := store.Sweep(cmd.Context(), time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Printf("swept %d expired session(s)\n", len(swept))
	return nil
}
