package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage/legacy"
)

var importDirFlag string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import users, labs and sessions from legacy CSV tables",
	Long: `Import users.csv, labs.csv and lab_sessions.csv from a directory into the
database. Rows whose IDs already exist are skipped, so importing twice is safe.

Examples:
  vlab import --dir ./data`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importDirFlag, "dir", ".", "Directory holding the CSV tables")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	snap, err := legacy.Load(importDirFlag)
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	users, labs, sessions, err := store.Import(context.Background(), snap)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d users, %d labs, %d sessions (of %d, %d, %d)\n",
		users, labs, sessions, len(snap.Users), len(snap.Labs), len(snap.Sessions))
	return nil
}
