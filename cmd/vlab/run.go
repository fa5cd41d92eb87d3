package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
)

var (
	userFlag     int64
	labFlag      int64
	saveOnlyFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run and grade a submission file",
	Long: `Run a Python file in the sandbox, grade its output against the lab's
expected output and record the attempt. Use "-" to read from stdin.

Examples:
  vlab run --user 2 --lab 1 hello.py
  vlab run --user 2 --lab 1 --save-only draft.py`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int64Var(&userFlag, "user", 0, "Submitting user ID")
	runCmd.Flags().Int64Var(&labFlag, "lab", 0, "Lab ID")
	runCmd.Flags().BoolVar(&saveOnlyFlag, "save-only", false, "Record the code without running it")
	runCmd.MarkFlagRequired("user")
	runCmd.MarkFlagRequired("lab")
	rootCmd.AddCommand(runCmd)
}

func readSource(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading submission: %w", err)
	}
	return string(data), nil
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readSource(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	sub := lab.Submission{UserID: userFlag, LabID: labFlag, Code: code}

	if saveOnlyFlag {
		id, err := svc.SaveOnly(ctx, sub)
		if err != nil {
			return err
		}
		fmt.Printf("Saved session %d (not graded)\n", id)
		return nil
	}

	graded, err := svc.RunAndGrade(ctx, sub)
	if err != nil {
		return err
	}
	printGraded(graded)
	return nil
}

func printGraded(g *lab.Graded) {
	color := "32"
	if g.Result.Outcome != sandbox.OutcomeSuccess {
		color = "31"
	}
	fmt.Printf("\033[%sm%s\033[0m\n", color, g.Result.Output)
	fmt.Printf("\033[90m── %s in %v · session %d\033[0m\n", g.Result.Outcome, g.Result.Duration.Round(time.Millisecond), g.SessionID)
	fmt.Printf("Score: %d/100\n", g.Score)
}
