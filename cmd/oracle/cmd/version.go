package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verisage/oracle/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print detailed version information about the oracle node.
This includes version number, build time, commit hash, and Go version.`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Println(version.Info())
}
