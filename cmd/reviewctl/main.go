// Command reviewctl drives review intakes from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Fill and evaluate expat tax review intakes",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(evaluateCmd())
	root.AddCommand(fillCmd())
	root.AddCommand(operatorTokenCmd())
	return root
}
