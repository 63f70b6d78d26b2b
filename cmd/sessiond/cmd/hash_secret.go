package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miradorhq/sessiond/internal/domain/secret"
)

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret [secret]",
	Short: "Generate an Argon2id hash for a directory secret",
	Long: `Generate an Argon2id hash of a login secret for use in a seed
directory file.

The output is a standard $argon2id$ encoded hash that can be used directly
in the secret_hash field of a seed entry.

Example:
  sessiond hash-secret "my-login-secret"
  # Output: $argon2id$v=19$m=48128,t=1,p=1$...

Security note: The secret will appear in shell history.
Consider using an environment variable:
  sessiond hash-secret "$MY_SECRET"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := secret.Hash(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash secret: %w", err)
		}
		fmt.Println(hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashSecretCmd)
}
