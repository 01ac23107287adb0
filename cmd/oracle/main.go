package main

import (
	"fmt"
	"os"

	"github.com/verisage/oracle/cmd/oracle/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
