// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"os"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/spf13/cobra"
)

var keygenOutput string

// keygenCmd generates a session token signing key
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a session token signing key",
	Long: `Generate an ECDSA P-256 private key for signing session tokens
and write it PEM encoded to the output file, or stdout when no output
file is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pemData, err := config.GenerateSigningKey()
		if err != nil {
			return err
		}
		if keygenOutput == "" {
			_, err = os.Stdout.Write(pemData)
			return err
		}
		if err := os.WriteFile(keygenOutput, pemData, 0600); err != nil {
			return fmt.Errorf("failed to write signing key: %w", err)
		}
		fmt.Printf("Signing key written to %s\n", keygenOutput)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "",
		"output file for the PEM encoded key (default stdout)")
}
