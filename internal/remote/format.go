package remote

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
)

// separator divides program output from the run summary in lab_run results.
const separator = "\n---\n"

// Summary is the metadata that follows a run's output.
type Summary struct {
	Outcome  sandbox.Outcome
	Duration time.Duration
	Score    *int
}

// FormatResult renders a lab_run tool result: the output, then the summary
// as "key: value" lines.
func FormatResult(output string, s Summary) string {
	var b strings.Builder
	b.WriteString(output)
	b.WriteString(separator)
	fmt.Fprintf(&b, "outcome: %s\n", s.Outcome)
	fmt.Fprintf(&b, "duration_ms: %d\n", s.Duration.Milliseconds())
	if s.Score != nil {
		fmt.Fprintf(&b, "score: %d\n", *s.Score)
	}
	return b.String()
}

// ParseResult splits a lab_run tool result back into output and summary.
func ParseResult(text string) (string, Summary, error) {
	i := strings.LastIndex(text, separator)
	if i < 0 {
		return "", Summary{}, fmt.Errorf("malformed lab_run result: no summary")
	}
	output := text[:i]

	var s Summary
	for _, line := range strings.Split(text[i+len(separator):], "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		switch key {
		case "outcome":
			s.Outcome = sandbox.Outcome(value)
		case "duration_ms":
			ms, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return "", Summary{}, fmt.Errorf("malformed duration %q", value)
			}
			s.Duration = time.Duration(ms) * time.Millisecond
		case "score":
			n, err := strconv.Atoi(value)
			if err != nil {
				return "", Summary{}, fmt.Errorf("malformed score %q", value)
			}
			s.Score = &n
		}
	}

	switch s.Outcome {
	case sandbox.OutcomeSuccess, sandbox.OutcomeTimedOut, sandbox.OutcomeRuntimeError:
	default:
		return "", Summary{}, fmt.Errorf("unknown outcome %q", s.Outcome)
	}
	return output, s, nil
}
