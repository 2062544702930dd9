package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/businessgohq/bridge/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "bridge",
		Short:         "Messaging identity and session bridge",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bridge server",
			Run: func(_ *cobra.Command, _ []string) {
				runServe()
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(_ *cobra.Command, _ []string) {
				fmt.Println(version.GetInfo())
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
