package lab

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage/sqlite"
)

// fakeRunner returns a canned result and records what it was asked to run.
type fakeRunner struct {
	result  sandbox.Result
	calls   int
	source  string
	timeout time.Duration
}

func (f *fakeRunner) Execute(_ context.Context, source string, timeout time.Duration) *sandbox.Result {
	f.calls++
	f.source = source
	f.timeout = timeout
	r := f.result
	return &r
}

func testService(t *testing.T, runner sandbox.Runner) (*Service, *sqlite.SQLiteStore, *storage.LabExercise) {
	t.Helper()
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("opening memory db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	lab := &storage.LabExercise{Title: "Basic Python", Description: "Print statements", ExpectedOutput: "Hello World"}
	if err := store.CreateLab(context.Background(), lab); err != nil {
		t.Fatalf("CreateLab: %v", err)
	}
	return NewService(store, runner, 5*time.Second), store, lab
}

func TestRunAndGradeMatch(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "Hello World", Outcome: sandbox.OutcomeSuccess, Stream: sandbox.StreamStdout}}
	svc, store, lab := testService(t, runner)
	ctx := context.Background()

	code := "print('Hello World')"
	got, err := svc.RunAndGrade(ctx, Submission{UserID: 2, LabID: lab.ID, Code: code})
	if err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if got.Score != 100 {
		t.Errorf("score = %d, want 100", got.Score)
	}
	if runner.source != code || runner.timeout != 5*time.Second {
		t.Errorf("runner got (%q, %v)", runner.source, runner.timeout)
	}

	sess, err := store.GetSession(ctx, got.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Output != "Hello World" || sess.Score == nil || *sess.Score != 100 || sess.Code != code {
		t.Errorf("persisted session = %+v", sess)
	}
	if sess.Outcome != string(sandbox.OutcomeSuccess) {
		t.Errorf("outcome = %q", sess.Outcome)
	}
}

func TestRunAndGradeCaseMismatch(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "hello world", Outcome: sandbox.OutcomeSuccess}}
	svc, store, lab := testService(t, runner)

	got, err := svc.RunAndGrade(context.Background(), Submission{UserID: 2, LabID: lab.ID, Code: "print('hello world')"})
	if err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if got.Score != 0 {
		t.Errorf("score = %d, want 0 for case mismatch", got.Score)
	}

	sess, _ := store.GetSession(context.Background(), got.SessionID)
	if sess.Score == nil || *sess.Score != 0 {
		t.Errorf("persisted score = %v, want 0", sess.Score)
	}
}

func TestRunAndGradeRuntimeErrorIsGraded(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "NameError: name 'x' is not defined", Outcome: sandbox.OutcomeRuntimeError}}
	svc, _, lab := testService(t, runner)

	got, err := svc.RunAndGrade(context.Background(), Submission{UserID: 2, LabID: lab.ID, Code: "print(x)"})
	if err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if got.Score != 0 || got.Result.Outcome != sandbox.OutcomeRuntimeError {
		t.Errorf("got score %d outcome %s", got.Score, got.Result.Outcome)
	}
}

func TestRunAndGradeUnknownLab(t *testing.T) {
	runner := &fakeRunner{}
	svc, store, _ := testService(t, runner)
	ctx := context.Background()

	_, err := svc.RunAndGrade(ctx, Submission{UserID: 2, LabID: 99, Code: "print(1)"})
	if !errors.Is(err, ErrLabNotFound) {
		t.Fatalf("err = %v, want ErrLabNotFound", err)
	}
	if runner.calls != 0 {
		t.Error("runner should not run for an unknown lab")
	}
	if sessions, _ := store.ListSessionsByUser(ctx, 2); len(sessions) != 0 {
		t.Errorf("got %d sessions, want none", len(sessions))
	}
}

func TestRunAndGradeInfiniteLoop(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	policy := sandbox.DefaultPolicy()
	policy.Interpreter = "sh"
	policy.InterpreterArgs = nil
	policy.TempDir = t.TempDir()

	svc, store, lab := testService(t, sandbox.NewProcessSandbox(policy))
	svc.timeout = 300 * time.Millisecond

	got, err := svc.RunAndGrade(context.Background(), Submission{UserID: 3, LabID: lab.ID, Code: "while true; do :; done"})
	if err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if got.Result.Outcome != sandbox.OutcomeTimedOut || got.Result.Output != sandbox.TimeoutMessage {
		t.Errorf("result = %+v, want timeout", got.Result)
	}
	if got.Score != 0 {
		t.Errorf("score = %d, want 0", got.Score)
	}

	entries, err := os.ReadDir(policy.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("execution artifact left behind: %d entries", len(entries))
	}

	sess, _ := store.GetSession(context.Background(), got.SessionID)
	if sess.Outcome != string(sandbox.OutcomeTimedOut) {
		t.Errorf("persisted outcome = %q", sess.Outcome)
	}
}

func TestRunAndGradeIgnoresCallerCancel(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	policy := sandbox.DefaultPolicy()
	policy.Interpreter = "sh"
	policy.InterpreterArgs = nil
	policy.TempDir = t.TempDir()

	svc, _, lab := testService(t, sandbox.NewProcessSandbox(policy))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	got, err := svc.RunAndGrade(ctx, Submission{UserID: 7, LabID: lab.ID, Code: "sleep 1; echo Hello World"})
	if err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if got.Result.Outcome != sandbox.OutcomeSuccess || got.Score != 100 {
		t.Errorf("result = %+v score %d, want the run to complete", got.Result, got.Score)
	}

	history, err := svc.SessionsByUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("SessionsByUser: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("got %d sessions, want exactly 1", len(history))
	}
}

func TestSubmissionsPersistWithCancelledContext(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "Hello World", Outcome: sandbox.OutcomeSuccess}}
	svc, _, lab := testService(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.RunAndGrade(ctx, Submission{UserID: 8, LabID: lab.ID, Code: "print('Hello World')"}); err != nil {
		t.Fatalf("RunAndGrade: %v", err)
	}
	if _, err := svc.SaveOnly(ctx, Submission{UserID: 8, LabID: lab.ID, Code: "# draft"}); err != nil {
		t.Fatalf("SaveOnly: %v", err)
	}

	history, _ := svc.SessionsByUser(context.Background(), 8)
	if len(history) != 2 {
		t.Errorf("got %d sessions, want 2", len(history))
	}
}

func TestSaveOnly(t *testing.T) {
	runner := &fakeRunner{}
	svc, store, lab := testService(t, runner)
	ctx := context.Background()

	id, err := svc.SaveOnly(ctx, Submission{UserID: 4, LabID: lab.ID, Code: "# draft"})
	if err != nil {
		t.Fatalf("SaveOnly: %v", err)
	}
	if runner.calls != 0 {
		t.Error("SaveOnly must not execute code")
	}

	sess, err := store.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Score != nil || sess.Output != "" || sess.Code != "# draft" {
		t.Errorf("save-only session = %+v", sess)
	}

	history, _ := svc.SessionsByUser(ctx, 4)
	if len(history) != 1 {
		t.Errorf("history has %d sessions, want save-only included", len(history))
	}

	review, _ := svc.Review(ctx)
	if len(GradedSessions(review)) != 0 {
		t.Error("save-only session must not appear among graded sessions")
	}
}

func TestDuplicateSubmissionsAreIndependent(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "Hello World", Outcome: sandbox.OutcomeSuccess}}
	svc, _, lab := testService(t, runner)
	ctx := context.Background()

	sub := Submission{UserID: 5, LabID: lab.ID, Code: "print('Hello World')"}
	first, err := svc.SaveOnly(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.SaveOnly(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("identical submissions share session id %d", first)
	}
}

func TestCorrectScore(t *testing.T) {
	runner := &fakeRunner{result: sandbox.Result{Output: "nope", Outcome: sandbox.OutcomeSuccess}}
	svc, _, lab := testService(t, runner)
	ctx := context.Background()

	got, _ := svc.RunAndGrade(ctx, Submission{UserID: 2, LabID: lab.ID, Code: "print('nope')"})
	if err := svc.CorrectScore(ctx, got.SessionID, 70); err != nil {
		t.Fatalf("CorrectScore: %v", err)
	}

	review, _ := svc.Review(ctx)
	if len(review) != 1 || *review[0].Score != 70 || review[0].LabTitle != "Basic Python" {
		t.Errorf("review = %+v", review)
	}

	if err := svc.CorrectScore(ctx, 404, 50); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := testService(t, &fakeRunner{})
	ctx := context.Background()

	u, err := svc.Register(ctx, "Sam", "sam@example.com", "pw", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != storage.RoleStudent {
		t.Errorf("role = %q, want student", u.Role)
	}

	if _, err := svc.Register(ctx, "Sam again", "sam@example.com", "pw", ""); !errors.Is(err, storage.ErrEmailTaken) {
		t.Errorf("duplicate register err = %v, want ErrEmailTaken", err)
	}
	if _, err := svc.Register(ctx, "", "x@example.com", "pw", ""); !errors.Is(err, ErrInvalidUser) {
		t.Errorf("blank name err = %v, want ErrInvalidUser", err)
	}

	got, err := svc.Login(ctx, "sam@example.com", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("login id = %d, want %d", got.ID, u.ID)
	}

	for _, tc := range []struct{ email, password string }{
		{"sam@example.com", "wrong"},
		{"nobody@example.com", "pw"},
	} {
		if _, err := svc.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%s) err = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestBootstrap(t *testing.T) {
	store, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	svc := NewService(store, &fakeRunner{}, 0)
	ctx := context.Background()

	seed := Seed{
		InstructorName:     "Instructor",
		InstructorEmail:    "instructor@gmail.com",
		InstructorPassword: "password",
		Lab:                storage.LabExercise{Title: "Basic Python", ExpectedOutput: "Hello World"},
	}
	for i := 0; i < 2; i++ {
		if err := svc.Bootstrap(ctx, seed); err != nil {
			t.Fatalf("Bootstrap #%d: %v", i+1, err)
		}
	}

	users, _ := store.ListUsers(ctx)
	if len(users) != 1 || users[0].Role != storage.RoleInstructor {
		t.Errorf("users = %+v", users)
	}
	labs, _ := svc.Labs(ctx)
	if len(labs) != 1 || labs[0].ExpectedOutput != "Hello World" {
		t.Errorf("labs = %+v", labs)
	}

	if _, err := svc.Login(ctx, "instructor@gmail.com", "password"); err != nil {
		t.Errorf("seeded instructor cannot log in: %v", err)
	}
}
