package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verisage/oracle/cmd/oracle/app"
	"github.com/verisage/oracle/pkg/config"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the oracle node",
	Long: `Start the oracle node with the specified configuration.

This command will:
1. Load configuration from the specified file
2. Initialize all required components
3. Start the API server and worker pool
4. Handle graceful shutdown on interrupt`,
	PreRunE: validateStartFlags,
	RunE:    runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

// validateStartFlags checks if all required flags are provided
func validateStartFlags(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", cfgFile)
	}

	if signingKeyPath != "" && signingKeyPriv != "" {
		return fmt.Errorf("cannot use both --signing-key-path and --signing-key-priv at the same time")
	}
	if signingKeyPath != "" {
		if password == "" {
			return fmt.Errorf("--password is required when using --signing-key-path")
		}
		if _, err := os.Stat(signingKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("signing key file not found: %s", signingKeyPath)
		}
	}
	return nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadStartConfig()
	if err != nil {
		return err
	}

	// create signal channel for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// create app instance
	application := app.New(cmd.Context(), cfg)

	// start app in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := application.Run(); err != nil {
			errChan <- fmt.Errorf("application error: %w", err)
		}
	}()

	// wait for interrupt signal or error
	select {
	case <-sigChan:
		fmt.Println("\nReceived interrupt signal. Shutting down...")
		if err := application.Shutdown(); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
		return nil
	case err := <-errChan:
		return err
	}
}

// loadStartConfig loads the config file and applies flag overrides.
func loadStartConfig() (*config.Config, error) {
	// key flags override the file so Validate sees the final values
	if signingKeyPath != "" || signingKeyPriv != "" || debugMode {
		raw, err := config.LoadConfigWithoutValidation(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if signingKeyPath != "" {
			raw.Signer.KeystorePath = signingKeyPath
			raw.Signer.Password = password
			raw.Signer.PrivateKeyHex = ""
		}
		if signingKeyPriv != "" {
			raw.Signer.PrivateKeyHex = signingKeyPriv
			raw.Signer.KeystorePath = ""
			raw.Signer.Password = ""
		}
		if debugMode {
			raw.Logging.Debug = true
		}
		if err := raw.Validate(); err != nil {
			return nil, err
		}
		return raw, nil
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
