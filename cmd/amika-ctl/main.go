// Command amika-ctl is the operator tool for inspecting reminder schedules and deep links.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "amika-ctl",
		Short:         "Amika operator tool",
		Long:          "Inspect reminder recurrences and reminder deep links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExpandCommand(), newVerifyLinkCommand(), newIssueLinkCommand())
	return root
}
