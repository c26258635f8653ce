package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"csvmapper/pkg/contracts"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Long:  `Print the version number, git commit, build time, Go version and platform.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := contracts.GetVersionInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, contracts.GetVersionString())
			fmt.Fprintf(out, "  Git commit: %s\n", info.GitCommit)
			fmt.Fprintf(out, "  Built:      %s\n", info.BuildTime)
			fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
			fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info.OS, info.Architecture)
		},
	}
}
