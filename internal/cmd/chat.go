package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planforge/planforge/internal/gateway"
	"github.com/planforge/planforge/internal/log"
	"github.com/planforge/planforge/internal/session"
)

var chatParticipant string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Drive an elicitation session from the terminal",
	Long: `Run a local conversation against the dialogue engine. The finalized
plan artifact is printed when delivered. Type your answers one line at a
time; say "pause" to park the session and run chat again to resume.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatParticipant, "as", "local", "participant id for the session")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.DefaultLogger()

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	loopback := gateway.NewLoopback()
	engine, err := newEngine(cfg, store, loopback, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	fmt.Println("planforge chat — describe what you want to build (ctrl-d to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}

		reply, err := engine.HandleTurn(ctx, chatParticipant, session.Turn{Content: line})
		if err != nil {
			return err
		}
		fmt.Println(reply.Content)

		if artifacts := loopback.Deliveries(chatParticipant); len(artifacts) > 0 {
			fmt.Println("\nCompressed artifact:")
			fmt.Println(artifacts[len(artifacts)-1])
			return nil
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}
