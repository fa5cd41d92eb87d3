package legacy

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, UsersFile, "id,name,email,password_hash,role\n"+
		"1,Instructor,instructor@gmail.com,abc123,instructor\n"+
		"2,Sam,sam@example.com,def456,student\n")
	writeFile(t, dir, LabsFile, "lab_id,title,description,expected_output\n"+
		"1,Basic Python,Print statements and variables,Hello World\n")
	writeFile(t, dir, SessionsFile, "session_id,user_id,lab_id,code,output,score,timestamp\n"+
		"1,2,1,\"print('Hello World')\n\",Hello World,100.0,2025-01-02 10:11:12\n"+
		"2,2,1,x = 1,,,2025-01-02 10:15:00\n")

	snap, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(snap.Users) != 2 || snap.Users[0].Role != storage.RoleInstructor || snap.Users[1].Email != "sam@example.com" {
		t.Errorf("users = %+v", snap.Users)
	}
	if len(snap.Labs) != 1 || snap.Labs[0].ExpectedOutput != "Hello World" {
		t.Errorf("labs = %+v", snap.Labs)
	}
	if len(snap.Sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(snap.Sessions))
	}

	graded := snap.Sessions[0]
	if graded.Score == nil || *graded.Score != 100 {
		t.Errorf("score = %v, want 100", graded.Score)
	}
	if graded.Code != "print('Hello World')\n" {
		t.Errorf("code = %q, want verbatim", graded.Code)
	}
	wantTS := time.Date(2025, 1, 2, 10, 11, 12, 0, time.Local)
	if !graded.CreatedAt.Equal(wantTS) {
		t.Errorf("timestamp = %v, want %v", graded.CreatedAt, wantTS)
	}

	if snap.Sessions[1].Score != nil {
		t.Errorf("save-only score = %d, want nil", *snap.Sessions[1].Score)
	}
}

func TestLoadToleratesMissingColumnsAndFiles(t *testing.T) {
	dir := t.TempDir()
	// Sessions recorded before output and timestamp were tracked.
	writeFile(t, dir, SessionsFile, "session_id,user_id,lab_id,code,score\n3,1,1,print(1),nan\n")

	snap, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Users) != 0 || len(snap.Labs) != 0 {
		t.Errorf("missing files should load empty, got %d users %d labs", len(snap.Users), len(snap.Labs))
	}
	if len(snap.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(snap.Sessions))
	}
	s := snap.Sessions[0]
	if s.Output != "" || !s.CreatedAt.IsZero() || s.Score != nil {
		t.Errorf("missing columns should be empty, got %+v", s)
	}
}

func TestLoadRejectsBadRows(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "session_id,user_id\n,1\n"},
		{"fractional id", "session_id,user_id\n1.5,1\n"},
		{"score out of range", "session_id,score\n1,250\n"},
		{"bad timestamp", "session_id,timestamp\n1,yesterday\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, SessionsFile, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteSessions(t *testing.T) {
	score := 100
	sessions := []storage.Session{
		{ID: 1, UserID: 2, LabID: 1, Code: "print('a, b')", Output: "a, b", Score: &score,
			CreatedAt: time.Date(2025, 1, 2, 10, 11, 12, 0, time.UTC)},
		{ID: 2, UserID: 2, LabID: 1, Code: "draft"},
	}

	var buf bytes.Buffer
	if err := WriteSessions(&buf, sessions); err != nil {
		t.Fatalf("WriteSessions: %v", err)
	}

	want := "session_id,user_id,lab_id,code,output,score,timestamp\n" +
		"1,2,1,\"print('a, b')\",\"a, b\",100,2025-01-02 10:11:12\n" +
		"2,2,1,draft,,,\n"
	if buf.String() != want {
		t.Errorf("got:\n%s\nwant:\n%s", buf.String(), want)
	}

	dir := t.TempDir()
	writeFile(t, dir, SessionsFile, buf.String())
	snap, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Sessions) != 2 || !strings.Contains(snap.Sessions[0].Output, "a, b") {
		t.Errorf("reloaded sessions = %+v", snap.Sessions)
	}
}
