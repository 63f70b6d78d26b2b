package cmd

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miradorhq/sessiond/internal/config"
	"github.com/miradorhq/sessiond/internal/domain/session"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear persisted session state",
	Long: `Clear both identity slots from the configured session store.

Anyone with a persisted session is logged out. The store file itself is
kept; only the session records are removed.

Examples:
  # Clear with interactive confirmation
  sessiond reset

  # Clear without prompting
  sessiond reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !resetForce {
		fmt.Printf("Clear all session state in %s? [y/N] ", cfg.Store.Path)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	for _, slot := range session.Slots() {
		if err := store.Clear(cmd.Context(), slot); err != nil {
			return fmt.Errorf("failed to clear %s slot: %w", slot, err)
		}
	}

	fmt.Println("session state cleared")
	return nil
}
