// Package cmd provides the CLI commands for sessiond.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorhq/sessiond/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "sessiond - dual-identity session lifecycle daemon",
	Long: `sessiond manages the session lifecycle for a site with two identity
surfaces: an admin slot and a user slot. It authenticates against an
external directory, issues signed session tokens, enforces absolute and
idle expiry, and self-heals corrupted session state.

Quick start:
  1. Create a config file: sessiond.yaml
  2. Run: sessiond serve

Configuration:
  Config is loaded from sessiond.yaml in the current directory,
  $HOME/.sessiond/, or /etc/sessiond/.

  Environment variables can override config values with the SESSIOND_ prefix.
  Example: SESSIOND_SERVER_HTTP_ADDR=:9090

Commands:
  serve        Start the session daemon
  status       Show the persisted session slots
  reset        Clear persisted session state
  hash-secret  Generate an Argon2id hash for a directory secret
  version      Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./sessiond.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
