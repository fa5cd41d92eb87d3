package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "vlab",
	Short: "vlab - Cloud-based virtual laboratory",
	Long: `vlab runs student Python submissions in a sandbox, grades them against
each lab's expected output and keeps every attempt for review.

It can be used from the terminal or served as an HTTP API for a web portal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ./vlab.yaml or ~/.vlab/vlab.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
