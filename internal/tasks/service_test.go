package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/models"
	"github.com/shinobicompass/bot/internal/repository"
)

// memTasks keeps tasks in memory and enforces the one-open-task rule the
// way the partial unique index does: with a unique-violation error.
type memTasks struct {
	tasks map[string]*models.Task
}

func newMemTasks() *memTasks { return &memTasks{tasks: map[string]*models.Task{}} }

func (m *memTasks) Create(ctx context.Context, t *models.Task, enqueue func(ctx context.Context, tx pgx.Tx) error) error {
	for _, existing := range m.tasks {
		if existing.ChatID == t.ChatID && !existing.Ended {
			return &pgconn.PgError{Code: "23505", ConstraintName: "tasks_one_open_per_chat"}
		}
	}
	t.CreatedAt = time.Now()
	cp := *t
	m.tasks[t.ID] = &cp
	if enqueue != nil {
		return enqueue(ctx, nil)
	}
	return nil
}

func (m *memTasks) ByID(_ context.Context, id string) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) Open(_ context.Context, chatID int64) (*models.Task, error) {
	for _, t := range m.tasks {
		if t.ChatID == chatID && !t.Ended {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memTasks) LatestEnded(_ context.Context, chatID int64) (*models.Task, error) {
	var latest *models.Task
	for _, t := range m.tasks {
		if t.ChatID != chatID || !t.Ended {
			continue
		}
		if latest == nil || t.EndedAt.After(*latest.EndedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memTasks) SetAnnouncement(_ context.Context, id string, messageID int64) error {
	if t, ok := m.tasks[id]; ok {
		t.AnnouncementID = &messageID
	}
	return nil
}

func (m *memTasks) MarkEnded(_ context.Context, id string, results string) (bool, error) {
	t, ok := m.tasks[id]
	if !ok || t.Ended {
		return false, nil
	}
	now := time.Now()
	t.Ended, t.Results, t.EndedAt = true, &results, &now
	return true, nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) DeleteAllInChat(_ context.Context, chatID int64) (int64, error) {
	var n int64
	for id, t := range m.tasks {
		if t.ChatID == chatID {
			delete(m.tasks, id)
			n++
		}
	}
	return n, nil
}

type memSubs struct {
	subs map[string]*models.Submission // key task/user
}

func newMemSubs() *memSubs { return &memSubs{subs: map[string]*models.Submission{}} }

func subKey(taskID string, userID int64) string { return fmt.Sprintf("%s/%d", taskID, userID) }

func (m *memSubs) InsertStart(_ context.Context, taskID string, userID, value int64) (bool, error) {
	k := subKey(taskID, userID)
	if _, ok := m.subs[k]; ok {
		return false, nil
	}
	m.subs[k] = &models.Submission{TaskID: taskID, UserID: userID, StartValue: value, StartedAt: time.Now()}
	return true, nil
}

func (m *memSubs) SetEnd(_ context.Context, taskID string, userID, value int64) (bool, error) {
	s, ok := m.subs[subKey(taskID, userID)]
	if !ok || s.EndValue != nil {
		return false, nil
	}
	now := time.Now()
	s.EndValue, s.FinishedAt = &value, &now
	return true, nil
}

func (m *memSubs) Get(_ context.Context, taskID string, userID int64) (*models.Submission, error) {
	s, ok := m.subs[subKey(taskID, userID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubs) ListComplete(_ context.Context, taskID string) ([]*models.Submission, error) {
	return m.list(taskID, true), nil
}

func (m *memSubs) ListStarted(_ context.Context, taskID string) ([]*models.Submission, error) {
	return m.list(taskID, false), nil
}

func (m *memSubs) list(taskID string, completeOnly bool) []*models.Submission {
	var out []*models.Submission
	for _, s := range m.subs {
		if s.TaskID != taskID || (completeOnly && s.EndValue == nil) {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out
}

type memUsers struct {
	names map[int64]string
}

func (m *memUsers) Get(_ context.Context, userID int64) (*models.User, error) {
	name, ok := m.names[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &models.User{UserID: userID, FirstName: name, Name: &name}, nil
}

// mockMessenger records every outbound call.
type mockMessenger struct {
	sent     []sentMsg
	pinned   []int64
	unpinned []int64
	edited   []string
	unpinAll bool
	nextID   int64
}

type sentMsg struct {
	chatID int64
	text   string
}

func (m *mockMessenger) SendMessage(_ context.Context, chatID int64, text string, _ *chat.SendOptions) (int64, error) {
	m.sent = append(m.sent, sentMsg{chatID, text})
	m.nextID++
	return m.nextID, nil
}

func (m *mockMessenger) EditMessage(_ context.Context, _, _ int64, text string) error {
	m.edited = append(m.edited, text)
	return nil
}

func (m *mockMessenger) DeleteMessage(context.Context, int64, int64) error { return nil }

func (m *mockMessenger) PinMessage(_ context.Context, _, messageID int64) error {
	m.pinned = append(m.pinned, messageID)
	return nil
}

func (m *mockMessenger) UnpinMessage(_ context.Context, _, messageID int64) error {
	m.unpinned = append(m.unpinned, messageID)
	return nil
}

func (m *mockMessenger) UnpinAllMessages(context.Context, int64) error {
	m.unpinAll = true
	return nil
}

func (m *mockMessenger) IsChatAdmin(context.Context, int64, int64) (bool, error) {
	return false, nil
}

type scheduled struct {
	taskID string
	at     time.Time
}

type fixture struct {
	svc      *Service
	tasks    *memTasks
	subs     *memSubs
	msgr     *mockMessenger
	ends     []scheduled
	cleanups []scheduled
	clock    time.Time
}

func newFixture(t *testing.T, names map[int64]string) *fixture {
	t.Helper()
	loc := kolkata(t)
	f := &fixture{
		tasks: newMemTasks(),
		subs:  newMemSubs(),
		msgr:  &mockMessenger{},
		clock: time.Date(2026, 3, 10, 10, 0, 0, 0, loc),
	}
	f.svc = NewService(f.tasks, f.subs, &memUsers{names: names}, f.msgr,
		func(_ context.Context, _ pgx.Tx, args EndJobArgs, at time.Time) error {
			f.ends = append(f.ends, scheduled{args.TaskID, at})
			return nil
		},
		func(_ context.Context, args CleanupJobArgs, at time.Time) error {
			f.cleanups = append(f.cleanups, scheduled{args.TaskID, at})
			return nil
		},
		loc, nil)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

const chatID = int64(-100500)

func TestCreateAnnouncesAndSchedulesEnd(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	task, err := f.svc.Create(ctx, chatID, 1, "5:00 PM-6:30 PM Collect glory (2 gems)")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.ends) != 1 || f.ends[0].taskID != task.ID || !f.ends[0].at.Equal(task.EndAt) {
		t.Fatalf("end job not scheduled at window end: %+v", f.ends)
	}
	if len(f.msgr.sent) != 1 || !strings.Contains(f.msgr.sent[0].text, "Collect glory") {
		t.Fatalf("announcement not sent: %+v", f.msgr.sent)
	}
	if len(f.msgr.pinned) != 1 {
		t.Fatalf("announcement not pinned")
	}
	stored, err := f.tasks.ByID(ctx, task.ID)
	if err != nil || stored.AnnouncementID == nil {
		t.Fatalf("announcement id not stored: %+v, %v", stored, err)
	}
}

func TestCreateSecondActiveTaskRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM First (2 gems)"); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Create(ctx, chatID, 1, "7 PM-8 PM Second (2 gems)")
	if !errors.Is(err, ErrActiveTask) {
		t.Fatalf("err = %v, want ErrActiveTask", err)
	}
	// A different chat is unaffected.
	if _, err := f.svc.Create(ctx, chatID+1, 1, "7 PM-8 PM Elsewhere (2 gems)"); err != nil {
		t.Fatal(err)
	}
}

func TestSubmissionOrdering(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	loc := kolkata(t)

	task, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM Collect glory (2 gems)")
	if err != nil {
		t.Fatal(err)
	}
	const user = int64(42)

	// Window has not opened yet.
	if _, err := f.svc.SubmitStart(ctx, chatID, "", user, 1000); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("before start: err = %v, want ErrNotOpen", err)
	}

	f.clock = time.Date(2026, 3, 10, 17, 30, 0, 0, loc)

	// End before start.
	if _, err := f.svc.SubmitEnd(ctx, chatID, "", user, 1500); !errors.Is(err, ErrNoStartValue) {
		t.Fatalf("end without start: err = %v, want ErrNoStartValue", err)
	}
	if _, err := f.svc.SubmitStart(ctx, chatID, "", user, 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitStart(ctx, chatID, "", user, 1100); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second start: err = %v, want ErrAlreadyStarted", err)
	}
	if _, err := f.svc.SubmitEnd(ctx, chatID, "", user, 1500); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitEnd(ctx, chatID, "", user, 1600); !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("second end: err = %v, want ErrAlreadyFinished", err)
	}

	// Submissions by explicit task id work from anywhere.
	if _, err := f.svc.SubmitStart(ctx, 0, task.ID, 43, 500); err != nil {
		t.Fatal(err)
	}

	// At the window's end everything is rejected.
	f.clock = time.Date(2026, 3, 10, 18, 0, 0, 0, loc)
	if _, err := f.svc.SubmitEnd(ctx, 0, task.ID, 43, 600); !errors.Is(err, ErrWindowClosed) {
		t.Fatalf("after end: err = %v, want ErrWindowClosed", err)
	}
}

func TestEndPostsLeaderboardOnce(t *testing.T) {
	f := newFixture(t, map[int64]string{42: "Asuma", 43: "Kakashi"})
	ctx := context.Background()
	loc := kolkata(t)

	task, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM Collect glory (2 gems)")
	if err != nil {
		t.Fatal(err)
	}
	f.clock = time.Date(2026, 3, 10, 17, 30, 0, 0, loc)
	if _, err := f.svc.SubmitStart(ctx, chatID, "", 42, 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitEnd(ctx, chatID, "", 42, 1500); err != nil {
		t.Fatal(err)
	}
	// 43 never sends a final value and must not appear.
	if _, err := f.svc.SubmitStart(ctx, chatID, "", 43, 900); err != nil {
		t.Fatal(err)
	}

	f.clock = time.Date(2026, 3, 10, 18, 0, 0, 0, loc)
	sentBefore := len(f.msgr.sent)
	if err := f.svc.End(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	if len(f.msgr.sent) != sentBefore+1 {
		t.Fatalf("expected one results post, got %d", len(f.msgr.sent)-sentBefore)
	}
	results := f.msgr.sent[len(f.msgr.sent)-1].text
	for _, want := range []string{"Asuma", "+500", "1000 gems"} {
		if !strings.Contains(results, want) {
			t.Errorf("results missing %q:\n%s", want, results)
		}
	}
	if strings.Contains(results, "Kakashi") {
		t.Errorf("incomplete submission must not rank:\n%s", results)
	}
	if len(f.msgr.unpinned) != 1 || len(f.msgr.edited) != 1 {
		t.Errorf("announcement not retired: unpinned=%d edited=%d", len(f.msgr.unpinned), len(f.msgr.edited))
	}
	if len(f.cleanups) != 1 || f.cleanups[0].taskID != task.ID ||
		!f.cleanups[0].at.Equal(f.clock.Add(Retention)) {
		t.Fatalf("cleanup not scheduled at retention: %+v", f.cleanups)
	}

	// The deferred job and /endtask race; the second call is a no-op.
	if err := f.svc.End(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.msgr.sent) != sentBefore+1 || len(f.cleanups) != 1 {
		t.Fatalf("second End must not repeat side effects")
	}

	// The stored results serve /taskresult.
	got, err := f.svc.Results(ctx, chatID)
	if err != nil || got != results {
		t.Fatalf("Results = %q, %v", got, err)
	}
}

func TestNegativeDeltaRanksLast(t *testing.T) {
	f := newFixture(t, map[int64]string{42: "Asuma", 43: "Kakashi"})
	ctx := context.Background()
	loc := kolkata(t)

	task, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM Collect glory (2 gems)")
	if err != nil {
		t.Fatal(err)
	}
	f.clock = time.Date(2026, 3, 10, 17, 30, 0, 0, loc)
	for _, sub := range []struct{ user, start, end int64 }{
		{42, 1000, 980}, // lost glory
		{43, 900, 1000},
	} {
		if _, err := f.svc.SubmitStart(ctx, chatID, "", sub.user, sub.start); err != nil {
			t.Fatal(err)
		}
		if _, err := f.svc.SubmitEnd(ctx, chatID, "", sub.user, sub.end); err != nil {
			t.Fatal(err)
		}
	}
	f.clock = time.Date(2026, 3, 10, 18, 0, 0, 0, loc)
	if err := f.svc.End(ctx, task.ID); err != nil {
		t.Fatal(err)
	}
	results := f.msgr.sent[len(f.msgr.sent)-1].text
	if !strings.Contains(results, "-20") || !strings.Contains(results, "-40 gems") {
		t.Errorf("negative delta must flow through unchanged:\n%s", results)
	}
	if strings.Index(results, "Kakashi") > strings.Index(results, "Asuma") {
		t.Errorf("ranking must be by delta descending:\n%s", results)
	}
}

func TestCancelNotifiesSubmitters(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	loc := kolkata(t)

	task, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM Collect glory (2 gems)")
	if err != nil {
		t.Fatal(err)
	}
	f.clock = time.Date(2026, 3, 10, 17, 30, 0, 0, loc)
	if _, err := f.svc.SubmitStart(ctx, chatID, "", 42, 1000); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitEnd(ctx, chatID, "", 42, 1500); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.SubmitStart(ctx, chatID, "", 43, 900); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Cancel(ctx, chatID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tasks.ByID(ctx, task.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("canceled task must be deleted, got %v", err)
	}

	var finished, unfinished bool
	for _, msg := range f.msgr.sent {
		switch msg.chatID {
		case 42:
			finished = strings.Contains(msg.text, "no rewards")
		case 43:
			unfinished = strings.Contains(msg.text, "before it ended")
		}
	}
	if !finished || !unfinished {
		t.Fatalf("cancel notices wrong: %+v", f.msgr.sent)
	}

	if _, err := f.svc.Cancel(ctx, chatID); !errors.Is(err, ErrNoOpenTask) {
		t.Fatalf("second cancel: err = %v, want ErrNoOpenTask", err)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, chatID, 1, "5 PM-6 PM Collect glory (2 gems)"); err != nil {
		t.Fatal(err)
	}
	n, err := f.svc.Clear(ctx, chatID)
	if err != nil || n != 1 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
	if !f.msgr.unpinAll {
		t.Fatal("expected unpin-all")
	}
	if _, _, err := f.svc.Status(ctx, chatID, 42); !errors.Is(err, ErrNoOpenTask) {
		t.Fatalf("status after clear: err = %v", err)
	}
}
