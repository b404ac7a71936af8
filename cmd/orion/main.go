package main

import (
	"os"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/cmd"
)

func main() {
	rootCmd := cmd.NewRootCmd()
	failed, err := rootCmd.ExecuteC()
	if err != nil {
		if !cmd.IsSilentExit(err) {
			verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
			cli.Report(failed, err, verbose)
		}
		os.Exit(1)
	}
}
