package cmd

import (
	"fmt"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Version will be set by the build process
var Version = "dev"
var Commit = "none"
var Date = "unknown"

var versionBanner bool

func init() {
	versionCmd.Flags().BoolVar(&versionBanner, "banner", false, "Print an ASCII art banner first")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of remoteify",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if versionBanner {
			fmt.Fprint(out, figure.NewFigure("remoteify", "", true).String())
		}
		fmt.Fprintf(out, "remoteify version: %s\n", Version)
		fmt.Fprintf(out, "Git Commit: %s\n", Commit)
		fmt.Fprintf(out, "Build Date: %s\n", Date)
	},
}
