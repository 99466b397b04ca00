// Command availability-preview runs the availability engine against a policy
// file so operators can check a schedule before uploading it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "availability-preview",
		Short:         "Preview the slots a schedule policy produces",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
