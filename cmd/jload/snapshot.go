package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/daimatz/jload/pkg/vm"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot FILE",
	Short: "Print a loader snapshot written by load --snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		s, err := vm.UnmarshalSnapshot(data)
		if err != nil {
			return err
		}
		printSnapshot(s)
		return nil
	},
}

func printSnapshot(s *vm.Snapshot) {
	fmt.Println(HeaderStyle.Render(fmt.Sprintf("%d classes in %d loaders", s.Classes, len(s.Loaders))))
	for _, ls := range s.Loaders {
		kind := "user"
		if ls.Bootstrap {
			kind = "bootstrap"
		}
		status := GoodStyle.Render("alive")
		if !ls.Bootstrap && !ls.Alive {
			status = WarningStyle.Render("collected")
		}
		fmt.Printf("\n%s %s %s\n", InfoStyle.Render(kind), ls.ID, status)
		printNames("loaded", ls.Loaded)
		printNames("initiated", ls.Initiated)
		printNames("loading", ls.Loading)
		printNames("pending", ls.Pending)
		printNames("libraries", ls.Libraries)
	}
}

func printNames(label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Printf("  %s %s\n", MutedStyle.Render(fmt.Sprintf("%-10s", label)), strings.Join(names, " "))
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
