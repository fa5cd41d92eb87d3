package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders sessions as a markdown document, one section per session.
func ExportMarkdown(title string, views []SessionView) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", title))
	if len(views) == 0 {
		b.WriteString("_No sessions._\n")
		return b.String()
	}

	for _, v := range views {
		b.WriteString(fmt.Sprintf("## Session %d\n\n", v.ID))
		b.WriteString(fmt.Sprintf("- **Student:** %s\n", orDash(v.UserName)))
		if v.UserEmail != "" {
			b.WriteString(fmt.Sprintf("- **Email:** %s\n", v.UserEmail))
		}
		b.WriteString(fmt.Sprintf("- **Lab:** %s\n", orDash(v.LabTitle)))
		b.WriteString(fmt.Sprintf("- **Score:** %s\n", FormatScore(v.Score)))
		b.WriteString(fmt.Sprintf("- **Created:** %s\n", v.CreatedAt.Format(TimestampLayout)))
		b.WriteString("\n```python\n")
		b.WriteString(strings.TrimRight(v.Code, "\n"))
		b.WriteString("\n```\n\n")
		if v.Output != "" {
			b.WriteString(fmt.Sprintf("<details>\n<summary>Output</summary>\n\n```\n%s\n```\n</details>\n\n", v.Output))
		}
	}

	return b.String()
}

// ExportJSON renders sessions as formatted JSON.
func ExportJSON(views []SessionView) ([]byte, error) {
	export := struct {
		Sessions []SessionView `json:"sessions"`
	}{
		Sessions: views,
	}
	if export.Sessions == nil {
		export.Sessions = []SessionView{}
	}
	return json.MarshalIndent(export, "", "  ")
}

// FormatScore renders a score, or "-" for a save-only session.
func FormatScore(score *int) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%d/100", *score)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
