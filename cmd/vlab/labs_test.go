package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLabFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labs.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLabFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		titles  []string
		wantErr bool
	}{
		{
			name: "list",
			content: `labs:
  - title: Basic Python
    description: Print statements and variables
    expected_output: Hello World
  - title: Loops
    expected_output: |
      1
      2
`,
			titles: []string{"Basic Python", "Loops"},
		},
		{
			name:    "single mapping",
			content: "title: Strings\nexpected_output: abc\n",
			titles:  []string{"Strings"},
		},
		{name: "empty", content: "labs: []\n", wantErr: true},
		{name: "invalid yaml", content: "labs: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labs, err := loadLabFile(writeLabFile(t, tt.content))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", labs)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadLabFile: %v", err)
			}
			if len(labs) != len(tt.titles) {
				t.Fatalf("got %d labs, want %d", len(labs), len(tt.titles))
			}
			for i, title := range tt.titles {
				if labs[i].Title != title {
					t.Errorf("labs[%d].Title = %q, want %q", i, labs[i].Title, title)
				}
			}
		})
	}
}

func TestLoadLabFileKeepsMultilineOutput(t *testing.T) {
	labs, err := loadLabFile(writeLabFile(t, "title: Loops\nexpected_output: |\n  1\n  2\n"))
	if err != nil {
		t.Fatal(err)
	}
	if labs[0].ExpectedOutput != "1\n2\n" {
		t.Errorf("expected_output = %q", labs[0].ExpectedOutput)
	}
}
