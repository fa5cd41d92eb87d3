// Package legacy reads and writes the flat CSV tables used by earlier
// deployments of the lab portal (users.csv, labs.csv, lab_sessions.csv).
//
// Files may be missing and columns may be absent; absent values load as
// their empty default.
package legacy

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

const (
	UsersFile    = "users.csv"
	LabsFile     = "labs.csv"
	SessionsFile = "lab_sessions.csv"
)

// SessionColumns is the column order of lab_sessions.csv.
var SessionColumns = []string{"session_id", "user_id", "lab_id", "code", "output", "score", "timestamp"}

// Load reads the three legacy tables from dir into a snapshot.
func Load(dir string) (*storage.Snapshot, error) {
	var snap storage.Snapshot

	users, err := readTable(filepath.Join(dir, UsersFile))
	if err != nil {
		return nil, err
	}
	for i, r := range users {
		id, err := parseID(r.get("id"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", UsersFile, i+1, err)
		}
		snap.Users = append(snap.Users, storage.User{
			ID:           id,
			Name:         r.get("name"),
			Email:        r.get("email"),
			PasswordHash: r.get("password_hash"),
			Role:         storage.Role(r.get("role")),
		})
	}

	labs, err := readTable(filepath.Join(dir, LabsFile))
	if err != nil {
		return nil, err
	}
	for i, r := range labs {
		id, err := parseID(r.get("lab_id"))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", LabsFile, i+1, err)
		}
		snap.Labs = append(snap.Labs, storage.LabExercise{
			ID:             id,
			Title:          r.get("title"),
			Description:    r.get("description"),
			ExpectedOutput: r.get("expected_output"),
		})
	}

	sessions, err := readTable(filepath.Join(dir, SessionsFile))
	if err != nil {
		return nil, err
	}
	for i, r := range sessions {
		sess, err := parseSession(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", SessionsFile, i+1, err)
		}
		snap.Sessions = append(snap.Sessions, sess)
	}

	return &snap, nil
}

// WriteSessions writes sessions in the legacy lab_sessions.csv layout.
func WriteSessions(w io.Writer, sessions []storage.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SessionColumns); err != nil {
		return err
	}
	for _, s := range sessions {
		score := ""
		if s.Score != nil {
			score = strconv.Itoa(*s.Score)
		}
		ts := ""
		if !s.CreatedAt.IsZero() {
			ts = s.CreatedAt.Format(storage.TimestampLayout)
		}
		record := []string{
			strconv.FormatInt(s.ID, 10),
			strconv.FormatInt(s.UserID, 10),
			strconv.FormatInt(s.LabID, 10),
			s.Code,
			s.Output,
			score,
			ts,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseSession(r row) (storage.Session, error) {
	var sess storage.Session
	var err error

	if sess.ID, err = parseID(r.get("session_id")); err != nil {
		return sess, err
	}
	if sess.UserID, err = parseRef(r.get("user_id")); err != nil {
		return sess, fmt.Errorf("user_id: %w", err)
	}
	if sess.LabID, err = parseRef(r.get("lab_id")); err != nil {
		return sess, fmt.Errorf("lab_id: %w", err)
	}
	sess.Code = r.get("code")
	sess.Output = r.get("output")

	if sess.Score, err = parseScore(r.get("score")); err != nil {
		return sess, err
	}
	if ts := strings.TrimSpace(r.get("timestamp")); ts != "" {
		sess.CreatedAt, err = time.ParseInLocation(storage.TimestampLayout, ts, time.Local)
		if err != nil {
			return sess, fmt.Errorf("timestamp %q: %w", ts, err)
		}
	}
	return sess, nil
}

// parseID parses a required identifier. Float spellings ("3.0") are accepted
// because dataframe round-trips widen integer columns that ever held a blank.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("missing identifier")
	}
	id, err := parseRef(s)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("identifier %d must be positive", id)
	}
	return id, nil
}

func parseRef(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return int64(f), nil
}

// parseScore treats blank and NaN as "no score".
func parseScore(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil, fmt.Errorf("invalid score %q", s)
	}
	v := int(math.Round(f))
	if !storage.ValidScore(v) {
		return nil, fmt.Errorf("score %d: %w", v, storage.ErrInvalidScore)
	}
	return &v, nil
}

// row maps header names to the values of one record.
type row map[string]string

func (r row) get(col string) string {
	return r[col]
}

func readTable(path string) ([]row, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", path, err)
	}

	var rows []row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		r := make(row, len(header))
		for i, name := range header {
			if i < len(rec) {
				r[strings.TrimSpace(name)] = rec[i]
			}
		}
		rows = append(rows, r)
	}
	return rows, nil
}
