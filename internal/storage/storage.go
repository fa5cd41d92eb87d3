package storage

import (
	"context"
	"errors"
	"time"
)

// TimestampLayout is the on-disk format of session timestamps, in local time.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidScore = errors.New("score must be between 0 and 100")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidLab   = errors.New("lab title is required")
)

// Role is a user's role in the portal.
type Role string

const (
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleInstructor || r == RoleStudent
}

// User is a registered portal user.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}

// LabExercise is an exercise students submit code against.
type LabExercise struct {
	ID             int64  `json:"lab_id" yaml:"lab_id"`
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description"`
	ExpectedOutput string `json:"expected_output" yaml:"expected_output"`
}

// Session is one persisted run (or save-only) of a submission.
// A nil Score marks a save-only session.
type Session struct {
	ID        int64     `json:"session_id"`
	UserID    int64     `json:"user_id"`
	LabID     int64     `json:"lab_id"`
	Code      string    `json:"code"`
	Output    string    `json:"output"`
	Score     *int      `json:"score"`
	Outcome   string    `json:"outcome,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}

// Graded reports whether the session carries a score.
func (s *Session) Graded() bool {
	return s.Score != nil
}

// SessionView is a session joined with its user and lab for review.
// Fields of a user or lab that no longer resolves are left blank.
type SessionView struct {
	Session
	UserName  string `json:"name"`
	UserEmail string `json:"email"`
	LabTitle  string `json:"title"`
}

// Snapshot is a bulk set of records with preassigned identifiers.
type Snapshot struct {
	Users    []User
	Labs     []LabExercise
	Sessions []Session
}

// Store is the persistence interface for users, labs and sessions.
type Store interface {
	// CreateUser inserts a user and assigns its ID.
	CreateUser(ctx context.Context, u *User) error

	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// CreateLab inserts a lab exercise and assigns its ID.
	CreateLab(ctx context.Context, l *LabExercise) error

	GetLab(ctx context.Context, id int64) (*LabExercise, error)
	ListLabs(ctx context.Context) ([]LabExercise, error)

	// AppendSession assigns the next session ID and timestamp, then persists
	// the session. ID and CreatedAt are written back into s.
	AppendSession(ctx context.Context, s *Session) error

	// UpdateScore overwrites the score of an existing session.
	UpdateScore(ctx context.Context, id int64, score int) error

	GetSession(ctx context.Context, id int64) (*Session, error)

	// ListSessionsByUser returns a user's sessions, newest first.
	ListSessionsByUser(ctx context.Context, userID int64) ([]Session, error)

	// ListSessionsJoined returns every session with user and lab metadata, newest first.
	ListSessionsJoined(ctx context.Context) ([]SessionView, error)

	// Close releases resources.
	Close() error
}

// ValidScore reports whether score is within the 0-100 range.
func ValidScore(score int) bool {
	return score >= 0 && score <= 100
}
