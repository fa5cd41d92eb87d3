package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open an interactive console for a lab",
	Long: `Open an interactive lab console. Type code line by line, then use
.run to execute and grade it or .save to store it without running.

Examples:
  vlab start --user 2 --lab 1`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().Int64Var(&userFlag, "user", 0, "Submitting user ID")
	startCmd.Flags().Int64Var(&labFlag, "lab", 0, "Lab ID")
	startCmd.MarkFlagRequired("user")
	startCmd.MarkFlagRequired("lab")
	rootCmd.AddCommand(startCmd)
}

// console holds the code buffer of an interactive lab session.
type console struct {
	svc    *lab.Service
	lab    *storage.LabExercise
	userID int64
	lines  []string
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	l, err := svc.Lab(ctx, labFlag)
	if err != nil {
		return err
	}
	c := &console{svc: svc, lab: l, userID: userFlag}

	fmt.Printf("vlab - Lab %d: %s\n", l.ID, l.Title)
	if l.Description != "" {
		fmt.Printf("%s\n", l.Description)
	}
	fmt.Printf("Type .help for commands, .quit to exit\n\n")

	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m>>>\033[0m ",
		HistoryFile:     filepath.Join(home, ".vlab", "history"),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// A started run always finishes and is saved, so Ctrl+C during one is
	// only acknowledged. At the prompt readline reports it as ErrInterrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			fmt.Println("\n(run in progress, it stops at the time limit)")
		}
	}()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if !strings.HasPrefix(strings.TrimSpace(input), ".") {
			c.lines = append(c.lines, input)
			rl.SetPrompt("\033[36m...\033[0m ")
			continue
		}
		rl.SetPrompt("\033[36m>>>\033[0m ")

		if c.handleCommand(ctx, strings.TrimSpace(input)) {
			return nil
		}
	}
}

// handleCommand runs a dot command and reports whether the console should exit.
func (c *console) handleCommand(ctx context.Context, input string) bool {
	code := strings.Join(c.lines, "\n")

	switch strings.ToLower(strings.Fields(input)[0]) {
	case ".quit", ".exit", ".q":
		fmt.Println("Goodbye!")
		return true
	case ".run":
		graded, err := c.svc.RunAndGrade(ctx, lab.Submission{UserID: c.userID, LabID: c.lab.ID, Code: code})
		if err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n\n", err)
			return false
		}
		printGraded(graded)
		fmt.Println()
	case ".save":
		id, err := c.svc.SaveOnly(ctx, lab.Submission{UserID: c.userID, LabID: c.lab.ID, Code: code})
		if err != nil {
			fmt.Printf("\033[31merror: %s\033[0m\n\n", err)
			return false
		}
		fmt.Printf("Saved session %d\n\n", id)
	case ".show":
		if len(c.lines) == 0 {
			fmt.Println("(empty)")
		}
		for i, line := range c.lines {
			fmt.Printf("\033[90m%3d │\033[0m %s\n", i+1, line)
		}
		fmt.Println()
	case ".clear":
		c.lines = nil
		fmt.Println("Buffer cleared.")
		fmt.Println()
	case ".lab":
		fmt.Printf("Lab %d: %s\n%s\nExpected output: %q\n\n", c.lab.ID, c.lab.Title, c.lab.Description, c.lab.ExpectedOutput)
	case ".help":
		fmt.Println("Commands:")
		fmt.Println("  .run    - Execute and grade the buffer")
		fmt.Println("  .save   - Save the buffer without running it")
		fmt.Println("  .show   - Show the buffer")
		fmt.Println("  .clear  - Clear the buffer")
		fmt.Println("  .lab    - Show the lab description")
		fmt.Println("  .quit   - Exit")
		fmt.Println()
	default:
		fmt.Printf("Unknown command: %s (try .help)\n\n", input)
	}
	return false
}
