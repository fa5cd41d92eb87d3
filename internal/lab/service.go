// Package lab coordinates sandboxed execution, grading and persistence of
// student submissions, plus the small user and lab catalogue around them.
package lab

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/auth"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/grader"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/metrics"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

var (
	ErrLabNotFound        = errors.New("lab not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidUser        = errors.New("name, email and password are required")
)

// Submission is code a user submits against a lab.
type Submission struct {
	UserID int64  `json:"user_id"`
	LabID  int64  `json:"lab_id"`
	Code   string `json:"code"`
}

// Graded is everything produced by one run-and-grade pass.
type Graded struct {
	Result    *sandbox.Result `json:"result"`
	Score     int             `json:"score"`
	SessionID int64           `json:"session_id"`
}

// Service runs submissions through the sandbox and grader and records them.
type Service struct {
	store   storage.Store
	runner  sandbox.Runner
	timeout time.Duration
}

// NewService creates a Service. A zero timeout leaves the runner's default in place.
func NewService(store storage.Store, runner sandbox.Runner, timeout time.Duration) *Service {
	return &Service{store: store, runner: runner, timeout: timeout}
}

// RunAndGrade executes the submission, grades its output against the lab's
// expected output and persists the session. Once started, a submission runs to
// completion: only the sandbox timeout bounds it, never the caller's context.
func (s *Service) RunAndGrade(ctx context.Context, sub Submission) (*Graded, error) {
	ctx = context.WithoutCancel(ctx)

	lab, err := s.Lab(ctx, sub.LabID)
	if err != nil {
		return nil, err
	}

	result := s.runner.Execute(ctx, sub.Code, s.timeout)
	score := grader.Grade(result.Output, lab.ExpectedOutput)

	sess := &storage.Session{
		UserID:  sub.UserID,
		LabID:   sub.LabID,
		Code:    sub.Code,
		Output:  result.Output,
		Score:   &score,
		Outcome: string(result.Outcome),
	}
	if err := s.store.AppendSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	metrics.RunsTotal.WithLabelValues(string(result.Outcome)).Inc()
	metrics.RunDuration.Observe(float64(result.Duration.Milliseconds()))
	if score == grader.FullScore {
		metrics.GradesTotal.WithLabelValues("pass").Inc()
	} else {
		metrics.GradesTotal.WithLabelValues("fail").Inc()
	}

	log.Printf("lab %d: user %d session %d %s score=%d (%v)",
		sub.LabID, sub.UserID, sess.ID, result.Outcome, score, result.Duration.Round(time.Millisecond))

	return &Graded{Result: result, Score: score, SessionID: sess.ID}, nil
}

// SaveOnly records the submission without running or grading it.
func (s *Service) SaveOnly(ctx context.Context, sub Submission) (int64, error) {
	ctx = context.WithoutCancel(ctx)

	if _, err := s.Lab(ctx, sub.LabID); err != nil {
		return 0, err
	}

	sess := &storage.Session{
		UserID: sub.UserID,
		LabID:  sub.LabID,
		Code:   sub.Code,
	}
	if err := s.store.AppendSession(ctx, sess); err != nil {
		return 0, fmt.Errorf("saving session: %w", err)
	}
	metrics.SavesTotal.Inc()
	return sess.ID, nil
}

// Lab returns a single exercise.
func (s *Service) Lab(ctx context.Context, id int64) (*storage.LabExercise, error) {
	lab, err := s.store.GetLab(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrLabNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading lab: %w", err)
	}
	return lab, nil
}

// Labs returns every exercise in catalogue order.
func (s *Service) Labs(ctx context.Context) ([]storage.LabExercise, error) {
	return s.store.ListLabs(ctx)
}

// CreateLab adds an exercise to the catalogue.
func (s *Service) CreateLab(ctx context.Context, l *storage.LabExercise) error {
	l.Title = strings.TrimSpace(l.Title)
	return s.store.CreateLab(ctx, l)
}

// SessionsByUser returns a user's history, save-only sessions included.
func (s *Service) SessionsByUser(ctx context.Context, userID int64) ([]storage.Session, error) {
	return s.store.ListSessionsByUser(ctx, userID)
}

// Session returns a single stored session.
func (s *Service) Session(ctx context.Context, id int64) (*storage.Session, error) {
	return s.store.GetSession(ctx, id)
}

// Review returns every session joined with user and lab metadata, newest first.
func (s *Service) Review(ctx context.Context) ([]storage.SessionView, error) {
	return s.store.ListSessionsJoined(ctx)
}

// GradedSessions filters a review down to sessions that carry a score.
func GradedSessions(views []storage.SessionView) []storage.SessionView {
	var graded []storage.SessionView
	for _, v := range views {
		if v.Graded() {
			graded = append(graded, v)
		}
	}
	return graded
}

// CorrectScore overwrites the score of a session on an instructor's behalf.
func (s *Service) CorrectScore(ctx context.Context, sessionID int64, score int) error {
	if err := s.store.UpdateScore(ctx, sessionID, score); err != nil {
		return err
	}
	log.Printf("session %d: score corrected to %d", sessionID, score)
	return nil
}

// Register creates a user account. Role defaults to student.
func (s *Service) Register(ctx context.Context, name, email, password string, role storage.Role) (*storage.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrInvalidUser
	}
	if role == "" {
		role = storage.RoleStudent
	}

	u := &storage.User{
		Name:         name,
		Email:        email,
		PasswordHash: auth.HashPassword(password),
		Role:         role,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login returns the user whose email and password match.
func (s *Service) Login(ctx context.Context, email, password string) (*storage.User, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Seed describes the records created in an empty portal.
type Seed struct {
	InstructorName     string
	InstructorEmail    string
	InstructorPassword string
	Lab                storage.LabExercise
}

// Bootstrap creates the seed instructor and lab when their tables are empty.
func (s *Service) Bootstrap(ctx context.Context, seed Seed) error {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 && seed.InstructorEmail != "" {
		u, err := s.Register(ctx, seed.InstructorName, seed.InstructorEmail, seed.InstructorPassword, storage.RoleInstructor)
		if err != nil {
			return fmt.Errorf("seeding instructor: %w", err)
		}
		log.Printf("Seeded instructor %s (id %d)", u.Email, u.ID)
	}

	labs, err := s.store.ListLabs(ctx)
	if err != nil {
		return err
	}
	if len(labs) == 0 && seed.Lab.Title != "" {
		l := seed.Lab
		if err := s.CreateLab(ctx, &l); err != nil {
			return fmt.Errorf("seeding lab: %w", err)
		}
		log.Printf("Seeded lab %q (id %d)", l.Title, l.ID)
	}
	return nil
}
