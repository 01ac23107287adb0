package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verisage/oracle/pkg/version"
)

var (
	// Global flags
	cfgFile        string
	signingKeyPath string
	signingKeyPriv string
	password       string
	debugMode      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Verisage Oracle Node",
	Long: `Verisage Oracle Node answers fact verification and social post
credibility queries by weighted consensus over multiple LLM providers.
Every result is signed with the node's secp256k1 key so consumers can
verify its origin.

Signing Key Options:
1. Use keystore file:
   --signing-key-path /path/to/keystore.json --password yourpassword

2. Use private key directly:
   --signing-key-priv 0x123...abc`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags - available to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is ./config/oracle.yaml)")
	rootCmd.PersistentFlags().StringVar(&signingKeyPath, "signing-key-path", "",
		"path to signing keystore file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&signingKeyPriv, "signing-key-priv", "",
		"ECDSA private key in hex format (overrides config)")
	rootCmd.PersistentFlags().StringVar(&password, "password", "",
		"password for keystore (required only when using --signing-key-path)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"enable debug mode")

	// Add version template
	rootCmd.SetVersionTemplate(`Version: {{.Version}}
`)
}

// initConfig resolves the config file path
func initConfig() {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			fmt.Printf("Config file not found: %s\n", cfgFile)
			os.Exit(1)
		}
		return
	}
	cfgFile = "./config/oracle.yaml"
}
