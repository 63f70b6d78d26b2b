package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorhq/sessiond/internal/config"
	"github.com/miradorhq/sessiond/internal/domain/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted session slots",
	Long: `Inspect the persisted session state without starting the server.

Reads both identity slots from the configured store and prints their
principal, expiry deadline, and last activity. Corrupted records are
reported as such; they are cleared the next time the daemon resolves.

Example:
  sessiond status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() { _ = store.Close() }()

	now := time.Now().UTC()
	fmt.Printf("store: %s (%s)\n\n", cfg.Store.Path, cfg.Store.Backend)

	for _, slot := range session.Slots() {
		record, err := store.Load(cmd.Context(), slot)
		switch {
		case errors.Is(err, session.ErrCorruptedRecord):
			fmt.Printf("%-5s  CORRUPTED (will be cleared on next resolve)\n", slot)
		case err != nil:
			return fmt.Errorf("failed to load %s slot: %w", slot, err)
		case record == nil:
			fmt.Printf("%-5s  empty\n", slot)
		default:
			idle, _ := time.ParseDuration(cfg.Session.IdleDuration)
			state := "valid"
			if reason := record.Expired(now, idle); reason != session.ExpiryNone {
				state = fmt.Sprintf("expired (%s)", reason)
			}
			fmt.Printf("%-5s  %s\n", slot, state)
			fmt.Printf("       principal:       %s <%s> (%s)\n",
				record.Principal.Name, record.Principal.Email, record.Principal.Role)
			fmt.Printf("       absolute expiry: %s\n", record.Clock.AbsoluteExpiry.Format(time.RFC3339))
			fmt.Printf("       last activity:   %s\n", record.Clock.LastActivity.Format(time.RFC3339))
		}
	}
	return nil
}
