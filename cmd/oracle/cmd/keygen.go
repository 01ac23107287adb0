package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

var (
	keygenDir      string
	keygenPassword string
	keygenName     string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new signing keystore",
	Long: `Generate a new secp256k1 signing key and write it as an
encrypted keystore file. The printed address identifies this oracle's
signed results.`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenDir, "dir", "keys", "directory to write the keystore to")
	keygenCmd.Flags().StringVar(&keygenPassword, "keygen-password", "", "password to encrypt the keystore (required)")
	keygenCmd.Flags().StringVar(&keygenName, "name", "oracle.key.json", "keystore file name")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if keygenPassword == "" {
		return fmt.Errorf("--keygen-password is required")
	}
	if err := os.MkdirAll(keygenDir, 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	ks := keystore.NewKeyStore(keygenDir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.ImportECDSA(privateKey, keygenPassword)
	if err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	// The keystore writes a UTC-- file; give it a stable name.
	target := filepath.Join(keygenDir, keygenName)
	if strings.HasPrefix(filepath.Base(account.URL.Path), "UTC--") {
		if err := os.Rename(account.URL.Path, target); err != nil {
			return fmt.Errorf("failed to rename keystore file: %w", err)
		}
	} else {
		target = account.URL.Path
	}

	fmt.Printf("Keystore: %s\n", target)
	fmt.Printf("Address:  %s\n", account.Address.Hex())
	return nil
}
