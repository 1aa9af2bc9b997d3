// -- cmd/genkey.go --
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/listforge/listforge/internal/security"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a credential encryption key.",
	Long: `Prints a fresh base64-encoded AES-256 key for encrypting directory
login credentials. Set it as LISTFORGE_ENCRYPTION_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := security.GenerateKey()
		if err != nil {
			return err
		}
		cmd.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd)
}
