package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage/legacy"
)

var (
	sessionUserFlag int64
	gradedFlag      bool
	limitFlag       int
	exportFormat    string
	exportOutput    string
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "Review recorded lab sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's code and output",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsScoreCmd = &cobra.Command{
	Use:   "score <session-id> <score>",
	Short: "Correct a session's score (0-100)",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsScore,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions as markdown, JSON or CSV",
	RunE:  runSessionsExport,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsScoreCmd, sessionsExportCmd)

	for _, c := range []*cobra.Command{sessionsListCmd, sessionsExportCmd} {
		c.Flags().Int64Var(&sessionUserFlag, "user", 0, "Only sessions of this user ID")
		c.Flags().BoolVar(&gradedFlag, "graded", false, "Only graded sessions")
	}
	sessionsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "Max sessions to show")

	sessionsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md, json or csv")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

// reviewSessions loads the joined session view with the list filters applied.
func reviewSessions(ctx context.Context, svc *lab.Service) ([]storage.SessionView, error) {
	views, err := svc.Review(ctx)
	if err != nil {
		return nil, err
	}
	if gradedFlag {
		views = lab.GradedSessions(views)
	}
	if sessionUserFlag > 0 {
		var mine []storage.SessionView
		for _, v := range views {
			if v.UserID == sessionUserFlag {
				mine = append(mine, v)
			}
		}
		views = mine
	}
	return views, nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	views, err := reviewSessions(ctx, svc)
	if err != nil {
		return err
	}
	if len(views) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}
	if limitFlag > 0 && len(views) > limitFlag {
		views = views[:limitFlag]
	}

	// Header
	fmt.Printf("%-8s %-20s %-24s %-9s %-12s %s\n", "ID", "STUDENT", "LAB", "SCORE", "OUTCOME", "WHEN")
	fmt.Println(strings.Repeat("─", 90))

	for _, v := range views {
		name := v.UserName
		if name == "" {
			name = fmt.Sprintf("(user %d)", v.UserID)
		}
		title := v.LabTitle
		if title == "" {
			title = fmt.Sprintf("(lab %d)", v.LabID)
		}
		outcome := v.Outcome
		if !v.Graded() {
			outcome = "saved"
		}

		fmt.Printf("%-8d %-20s %-24s %-9s %-12s %s\n",
			v.ID, truncate(name, 18), truncate(title, 22), storage.FormatScore(v.Score), outcome, timeAgo(v.CreatedAt))
	}

	return nil
}

func parseSessionID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	sess, err := svc.Session(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Session:  %d\n", sess.ID)
	fmt.Printf("User:     %d\n", sess.UserID)
	if l, err := svc.Lab(ctx, sess.LabID); err == nil {
		fmt.Printf("Lab:      %d (%s)\n", sess.LabID, l.Title)
	} else {
		fmt.Printf("Lab:      %d\n", sess.LabID)
	}
	fmt.Printf("Score:    %s\n", storage.FormatScore(sess.Score))
	if sess.Outcome != "" {
		fmt.Printf("Outcome:  %s\n", sess.Outcome)
	}
	fmt.Printf("Created:  %s\n", sess.CreatedAt.Format(storage.TimestampLayout))

	fmt.Println("\nCode:")
	fmt.Println(strings.Repeat("─", 60))
	fmt.Println(strings.TrimRight(sess.Code, "\n"))

	if sess.Graded() {
		fmt.Println("\nOutput:")
		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("\033[90m%s\033[0m\n", sess.Output)
	}

	return nil
}

func runSessionsScore(cmd *cobra.Command, args []string) error {
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid score %q", args[1])
	}

	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := svc.CorrectScore(ctx, id, score); err != nil {
		return err
	}
	fmt.Printf("Session %d scored %d/100\n", id, score)
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, done, err := openService(ctx)
	if err != nil {
		return err
	}
	defer done()

	views, err := reviewSessions(ctx, svc)
	if err != nil {
		return err
	}

	var output []byte
	switch exportFormat {
	case "json":
		if output, err = storage.ExportJSON(views); err != nil {
			return err
		}
	case "csv":
		sessions := make([]storage.Session, len(views))
		for i, v := range views {
			sessions[i] = v.Session
		}
		var buf bytes.Buffer
		if err := legacy.WriteSessions(&buf, sessions); err != nil {
			return err
		}
		output = buf.Bytes()
	case "md":
		output = []byte(storage.ExportMarkdown("Lab sessions", views))
	default:
		return fmt.Errorf("unknown export format %q (use md, json or csv)", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, output, 0o644)
	}

	os.Stdout.Write(output)
	return nil
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + ".."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
