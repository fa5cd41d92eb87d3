package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB

	// mu serialises every mutation so that ID assignment and insert are atomic.
	mu  sync.Mutex
	now func() time.Time
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes ordered.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// --- Users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, u *storage.User) error {
	if u.Role == "" {
		u.Role = storage.RoleStudent
	}
	if !u.Role.Valid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, u.Email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if exists > 0 {
		return storage.ErrEmailTaken
	}

	id, err := nextID(ctx, tx, "users", "id")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
		id, u.Name, u.Email, u.PasswordHash, string(u.Role),
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}

	u.ID = id
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*storage.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u, err
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, storage.ErrNotFound)
	}
	return u, err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]storage.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, password_hash, role FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []storage.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// --- Labs ---

func (s *SQLiteStore) CreateLab(ctx context.Context, l *storage.LabExercise) error {
	if strings.TrimSpace(l.Title) == "" {
		return storage.ErrInvalidLab
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, "labs", "lab_id")
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO labs (lab_id, title, description, expected_output) VALUES (?, ?, ?, ?)`,
		id, l.Title, l.Description, l.ExpectedOutput,
	)
	if err != nil {
		return fmt.Errorf("inserting lab: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing lab: %w", err)
	}

	l.ID = id
	return nil
}

func (s *SQLiteStore) GetLab(ctx context.Context, id int64) (*storage.LabExercise, error) {
	var l storage.LabExercise
	err := s.db.QueryRowContext(ctx, `
		SELECT lab_id, title, description, expected_output FROM labs WHERE lab_id = ?`, id).
		Scan(&l.ID, &l.Title, &l.Description, &l.ExpectedOutput)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lab %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying lab: %w", err)
	}
	return &l, nil
}

func (s *SQLiteStore) ListLabs(ctx context.Context) ([]storage.LabExercise, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lab_id, title, description, expected_output FROM labs ORDER BY lab_id`)
	if err != nil {
		return nil, fmt.Errorf("listing labs: %w", err)
	}
	defer rows.Close()

	var labs []storage.LabExercise
	for rows.Next() {
		var l storage.LabExercise
		if err := rows.Scan(&l.ID, &l.Title, &l.Description, &l.ExpectedOutput); err != nil {
			return nil, err
		}
		labs = append(labs, l)
	}
	return labs, rows.Err()
}

// --- Sessions ---

func (s *SQLiteStore) AppendSession(ctx context.Context, sess *storage.Session) error {
	if sess.Score != nil && !storage.ValidScore(*sess.Score) {
		return storage.ErrInvalidScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, "sessions", "session_id")
	if err != nil {
		return err
	}
	created := s.now().Local().Truncate(time.Second)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, lab_id, code, output, score, outcome, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, sess.UserID, sess.LabID, sess.Code, sess.Output, nullScore(sess.Score),
		sess.Outcome, created.Format(storage.TimestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}

	sess.ID = id
	sess.CreatedAt = created
	return nil
}

func (s *SQLiteStore) UpdateScore(ctx context.Context, id int64, score int) error {
	if !storage.ValidScore(score) {
		return storage.ErrInvalidScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET score = ? WHERE session_id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating score: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Legacy rows may hold NULL in any column but the key and score.
const sessionColumns = `s.session_id, COALESCE(s.user_id, 0), COALESCE(s.lab_id, 0), COALESCE(s.code, ''),
	COALESCE(s.output, ''), s.score, COALESCE(s.outcome, ''), COALESCE(s.timestamp, '')`

func (s *SQLiteStore) GetSession(ctx context.Context, id int64) (*storage.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	sess, err := scanSessionFromScanner(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, storage.ErrNotFound)
	}
	return sess, err
}

func (s *SQLiteStore) ListSessionsByUser(ctx context.Context, userID int64) ([]storage.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions s
		WHERE s.user_id = ?
		ORDER BY s.timestamp DESC, s.session_id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []storage.Session
	for rows.Next() {
		sess, err := scanSessionFromScanner(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) ListSessionsJoined(ctx context.Context) ([]storage.SessionView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`,
		       COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(l.title, '')
		FROM sessions s
		LEFT JOIN users u ON u.id = s.user_id
		LEFT JOIN labs l ON l.lab_id = s.lab_id
		ORDER BY s.timestamp DESC, s.session_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing joined sessions: %w", err)
	}
	defer rows.Close()

	var views []storage.SessionView
	for rows.Next() {
		var (
			v       storage.SessionView
			score   sql.NullInt64
			created string
		)
		err := rows.Scan(&v.ID, &v.UserID, &v.LabID, &v.Code, &v.Output, &score, &v.Outcome, &created,
			&v.UserName, &v.UserEmail, &v.LabTitle)
		if err != nil {
			return nil, err
		}
		v.Score = scoreFromNull(score)
		v.CreatedAt = parseTimestamp(created)
		views = append(views, v)
	}
	return views, rows.Err()
}

// Import inserts a snapshot with its identifiers preserved, in one transaction.
// Rows whose identifier already exists are skipped; the number of inserted
// users, labs and sessions is returned.
func (s *SQLiteStore) Import(ctx context.Context, snap *storage.Snapshot) (users, labs, sessions int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range snap.Users {
		role := u.Role
		if !role.Valid() {
			role = storage.RoleStudent
		}
		n, err := execCount(ctx, tx, `
			INSERT OR IGNORE INTO users (id, name, email, password_hash, role) VALUES (?, ?, ?, ?, ?)`,
			u.ID, u.Name, u.Email, u.PasswordHash, string(role))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("importing user %d: %w", u.ID, err)
		}
		users += n
	}

	for _, l := range snap.Labs {
		n, err := execCount(ctx, tx, `
			INSERT OR IGNORE INTO labs (lab_id, title, description, expected_output) VALUES (?, ?, ?, ?)`,
			l.ID, l.Title, l.Description, l.ExpectedOutput)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("importing lab %d: %w", l.ID, err)
		}
		labs += n
	}

	for _, sess := range snap.Sessions {
		var ts string
		if !sess.CreatedAt.IsZero() {
			ts = sess.CreatedAt.Format(storage.TimestampLayout)
		}
		n, err := execCount(ctx, tx, `
			INSERT OR IGNORE INTO sessions (session_id, user_id, lab_id, code, output, score, outcome, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.UserID, sess.LabID, sess.Code, sess.Output, nullScore(sess.Score), sess.Outcome, ts)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("importing session %d: %w", sess.ID, err)
		}
		sessions += n
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("committing import: %w", err)
	}
	return users, labs, sessions, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nextID returns max(col)+1 for table, or 1 when the table is empty.
func nextID(ctx context.Context, tx *sql.Tx, table, col string) (int64, error) {
	var id int64
	q := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) + 1 FROM %s", col, table)
	if err := tx.QueryRowContext(ctx, q).Scan(&id); err != nil {
		return 0, fmt.Errorf("allocating %s id: %w", table, err)
	}
	return id, nil
}

func execCount(ctx context.Context, tx *sql.Tx, query string, args ...any) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullScore(score *int) any {
	if score == nil {
		return nil
	}
	return *score
}

func scoreFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func parseTimestamp(s string) time.Time {
	t, err := time.ParseInLocation(storage.TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSessionFromScanner(s scanner) (*storage.Session, error) {
	var (
		sess    storage.Session
		score   sql.NullInt64
		created string
	)
	err := s.Scan(&sess.ID, &sess.UserID, &sess.LabID, &sess.Code, &sess.Output, &score, &sess.Outcome, &created)
	if err != nil {
		return nil, err
	}
	sess.Score = scoreFromNull(score)
	sess.CreatedAt = parseTimestamp(created)
	return &sess, nil
}

func scanUser(s scanner) (*storage.User, error) {
	var (
		u    storage.User
		role string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role); err != nil {
		return nil, err
	}
	u.Role = storage.Role(role)
	return &u, nil
}
