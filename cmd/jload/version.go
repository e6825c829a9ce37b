package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Set at build time with -ldflags.
	version = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("jload version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
