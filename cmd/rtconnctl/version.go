package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	rtconn "github.com/ajitpratap0/rtconn-go"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the rtconnctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rtconnctl version %s (%s)\n", rtconn.Version, runtime.Version())
			return nil
		},
	}
}
