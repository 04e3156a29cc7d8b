// Package tasks manages the admin-declared glory task lifecycle: parsing the
// command grammar, persisting tasks and submissions, ending windows through
// durable queue jobs, and rendering leaderboards.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/models"
	"github.com/shinobicompass/bot/internal/repository"
)

// Retention is how long an ended task (and its results) stays queryable
// before the cleanup job removes it.
const Retention = 24 * time.Hour

// State-conflict errors. Like the parse errors, each reads as user feedback.
var (
	ErrActiveTask      = errors.New("this chat already has an active task, end it first")
	ErrNoOpenTask      = errors.New("there is no active task here")
	ErrNotOpen         = errors.New("the task has not started yet")
	ErrWindowClosed    = errors.New("the task window is over, submissions are closed")
	ErrAlreadyStarted  = errors.New("you already submitted a starting inventory for this task")
	ErrNoStartValue    = errors.New("submit your starting inventory with /finv first")
	ErrAlreadyFinished = errors.New("you already submitted your final inventory")
	ErrNoResults       = errors.New("no recent task results for this chat")
)

// TaskStore and SubmissionStore are the persistence surface the service
// needs; *repository.TaskRepo and *repository.SubmissionRepo satisfy them.
type TaskStore interface {
	Create(ctx context.Context, t *models.Task, enqueue func(ctx context.Context, tx pgx.Tx) error) error
	ByID(ctx context.Context, id string) (*models.Task, error)
	Open(ctx context.Context, chatID int64) (*models.Task, error)
	LatestEnded(ctx context.Context, chatID int64) (*models.Task, error)
	SetAnnouncement(ctx context.Context, id string, messageID int64) error
	MarkEnded(ctx context.Context, id string, results string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteAllInChat(ctx context.Context, chatID int64) (int64, error)
}

type SubmissionStore interface {
	InsertStart(ctx context.Context, taskID string, userID, value int64) (bool, error)
	SetEnd(ctx context.Context, taskID string, userID, value int64) (bool, error)
	Get(ctx context.Context, taskID string, userID int64) (*models.Submission, error)
	ListComplete(ctx context.Context, taskID string) ([]*models.Submission, error)
	ListStarted(ctx context.Context, taskID string) ([]*models.Submission, error)
}

// UserStore resolves display names for the leaderboard.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*models.User, error)
}

// ScheduleEndFunc enqueues a deferred end-of-window job inside the task's
// insert transaction. Provided by main as a closure over river.Client.InsertTx.
type ScheduleEndFunc func(ctx context.Context, tx pgx.Tx, args EndJobArgs, at time.Time) error

// ScheduleCleanupFunc enqueues a deferred record-deletion job. Provided by
// main as a closure over river.Client.Insert.
type ScheduleCleanupFunc func(ctx context.Context, args CleanupJobArgs, at time.Time) error

type Service struct {
	tasks TaskStore
	subs  SubmissionStore
	users UserStore
	msgr  chat.Messenger
	log   *slog.Logger

	scheduleEnd     ScheduleEndFunc
	scheduleCleanup ScheduleCleanupFunc

	loc *time.Location
	now func() time.Time
}

func NewService(tasks TaskStore, subs SubmissionStore, users UserStore, msgr chat.Messenger,
	scheduleEnd ScheduleEndFunc, scheduleCleanup ScheduleCleanupFunc,
	loc *time.Location, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tasks:           tasks,
		subs:            subs,
		users:           users,
		msgr:            msgr,
		log:             log,
		scheduleEnd:     scheduleEnd,
		scheduleCleanup: scheduleCleanup,
		loc:             loc,
		now:             time.Now,
	}
}

// Create parses the command text, persists the task with its end-of-window
// job in one transaction, and announces it. The partial unique index on open
// tasks turns a concurrent duplicate into ErrActiveTask; announcement and
// pin failures are logged but never undo the task.
func (s *Service) Create(ctx context.Context, chatID, createdBy int64, text string) (*models.Task, error) {
	def, err := ParseDefinition(text, s.now(), s.loc)
	if err != nil {
		return nil, err
	}

	t := &models.Task{
		ID:          shortID(),
		ChatID:      chatID,
		Description: def.Description,
		RewardValue: def.RewardValue,
		RewardUnit:  def.RewardUnit,
		StartAt:     def.StartAt,
		EndAt:       def.EndAt,
		CreatedBy:   createdBy,
	}
	err = s.tasks.Create(ctx, t, func(ctx context.Context, tx pgx.Tx) error {
		return s.scheduleEnd(ctx, tx, EndJobArgs{TaskID: t.ID}, t.EndAt)
	})
	if isUniqueViolation(err) {
		return nil, ErrActiveTask
	}
	if err != nil {
		return nil, err
	}

	msgID, err := s.msgr.SendMessage(ctx, chatID, s.renderAnnouncement(t), nil)
	if err != nil {
		s.log.Error("task announcement failed", "task_id", t.ID, "error", err)
		return t, nil
	}
	if err := s.tasks.SetAnnouncement(ctx, t.ID, msgID); err != nil {
		s.log.Error("storing announcement id failed", "task_id", t.ID, "error", err)
	} else {
		t.AnnouncementID = &msgID
	}
	if err := s.msgr.PinMessage(ctx, chatID, msgID); err != nil {
		s.log.Warn("pinning announcement failed", "task_id", t.ID, "error", err)
	}
	return t, nil
}

// SubmitStart records a user's starting glory for the task. A second attempt
// races on the primary key and reports ErrAlreadyStarted either way.
func (s *Service) SubmitStart(ctx context.Context, chatID int64, taskID string, userID, value int64) (*models.Task, error) {
	t, err := s.resolve(ctx, chatID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpen(t); err != nil {
		return nil, err
	}
	inserted, err := s.subs.InsertStart(ctx, t.ID, userID, value)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrAlreadyStarted
	}
	return t, nil
}

// SubmitEnd records a user's final glory. Only valid after a starting value
// and strictly before the window's end.
func (s *Service) SubmitEnd(ctx context.Context, chatID int64, taskID string, userID, value int64) (*models.Task, error) {
	t, err := s.resolve(ctx, chatID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOpen(t); err != nil {
		return nil, err
	}
	updated, err := s.subs.SetEnd(ctx, t.ID, userID, value)
	if err != nil {
		return nil, err
	}
	if updated {
		return t, nil
	}
	// The conditional update matched nothing; find out which conflict it was.
	if _, err := s.subs.Get(ctx, t.ID, userID); errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoStartValue
	} else if err != nil {
		return nil, err
	}
	return nil, ErrAlreadyFinished
}

// End closes the task: renders and stores the leaderboard, posts it, unpins
// and retires the announcement, and schedules record cleanup. It is
// idempotent; the deferred job and an explicit /endtask can both call it.
func (s *Service) End(ctx context.Context, taskID string) error {
	t, err := s.tasks.ByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil // canceled or cleaned up before the job ran
	}
	if err != nil {
		return err
	}

	subs, err := s.subs.ListComplete(ctx, t.ID)
	if err != nil {
		return err
	}
	results := RenderResults(t, Leaderboard(subs, s.displayNames(ctx, subs), t.RewardValue))

	ended, err := s.tasks.MarkEnded(ctx, t.ID, results)
	if err != nil {
		return err
	}
	if !ended {
		return nil
	}

	if _, err := s.msgr.SendMessage(ctx, t.ChatID, results, nil); err != nil {
		s.log.Error("posting task results failed", "task_id", t.ID, "error", err)
	}
	s.retireAnnouncement(ctx, t, fmt.Sprintf("✅ <b>Task ended:</b> %s", t.Description))

	if err := s.scheduleCleanup(ctx, CleanupJobArgs{TaskID: t.ID}, s.now().Add(Retention)); err != nil {
		s.log.Error("scheduling task cleanup failed", "task_id", t.ID, "error", err)
	}
	return nil
}

// EndNow ends the chat's active task ahead of its window; the already
// scheduled end job then finds it ended and does nothing.
func (s *Service) EndNow(ctx context.Context, chatID int64) error {
	t, err := s.tasks.Open(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoOpenTask
	}
	if err != nil {
		return err
	}
	return s.End(ctx, t.ID)
}

// Cleanup removes an ended task's record once retention has passed.
func (s *Service) Cleanup(ctx context.Context, taskID string) error {
	return s.tasks.Delete(ctx, taskID)
}

// Cancel aborts the chat's active task before it ends. Every submitter is
// told by direct message, with different wording for those who had already
// sent a final value.
func (s *Service) Cancel(ctx context.Context, chatID int64) (*models.Task, error) {
	t, err := s.tasks.Open(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoOpenTask
	}
	if err != nil {
		return nil, err
	}

	started, err := s.subs.ListStarted(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, t.ID); err != nil {
		return nil, err
	}
	s.retireAnnouncement(ctx, t, fmt.Sprintf("❌ <b>Task canceled:</b> %s", t.Description))

	for _, sub := range started {
		text := fmt.Sprintf("❌ The task “%s” was canceled before it ended. Your starting inventory was discarded.", t.Description)
		if sub.EndValue != nil {
			text = fmt.Sprintf("❌ The task “%s” was canceled. Your submissions were recorded but no rewards will be given.", t.Description)
		}
		if _, err := s.msgr.SendMessage(ctx, sub.UserID, text, nil); err != nil {
			s.log.Warn("cancel notice failed", "task_id", t.ID, "user_id", sub.UserID, "error", err)
		}
	}
	return t, nil
}

// Clear deletes the chat's tasks in every state and unpins everything.
func (s *Service) Clear(ctx context.Context, chatID int64) (int64, error) {
	n, err := s.tasks.DeleteAllInChat(ctx, chatID)
	if err != nil {
		return 0, err
	}
	if err := s.msgr.UnpinAllMessages(ctx, chatID); err != nil {
		s.log.Warn("unpin all failed", "chat_id", chatID, "error", err)
	}
	return n, nil
}

// Results returns the stored leaderboard of the chat's most recently ended
// task still within retention.
func (s *Service) Results(ctx context.Context, chatID int64) (string, error) {
	t, err := s.tasks.LatestEnded(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrNoResults
	}
	if err != nil {
		return "", err
	}
	if t.Results == nil {
		return "", ErrNoResults
	}
	return *t.Results, nil
}

// Status reports the user's submission for the chat's active task; the
// submission is nil when they have not sent /finv yet.
func (s *Service) Status(ctx context.Context, chatID, userID int64) (*models.Task, *models.Submission, error) {
	t, err := s.tasks.Open(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrNoOpenTask
	}
	if err != nil {
		return nil, nil, err
	}
	sub, err := s.subs.Get(ctx, t.ID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return t, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return t, sub, nil
}

// resolve finds the task a submission targets: by explicit id when given
// (private-chat submissions), otherwise the chat's open task.
func (s *Service) resolve(ctx context.Context, chatID int64, taskID string) (*models.Task, error) {
	var (
		t   *models.Task
		err error
	)
	if taskID != "" {
		t, err = s.tasks.ByID(ctx, taskID)
	} else {
		t, err = s.tasks.Open(ctx, chatID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoOpenTask
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) requireOpen(t *models.Task) error {
	switch t.StateAt(s.now()) {
	case models.TaskScheduled:
		return ErrNotOpen
	case models.TaskEnded:
		return ErrWindowClosed
	}
	return nil
}

// retireAnnouncement unpins and rewrites the pinned announcement; both steps
// are best-effort.
func (s *Service) retireAnnouncement(ctx context.Context, t *models.Task, text string) {
	if t.AnnouncementID == nil {
		return
	}
	if err := s.msgr.UnpinMessage(ctx, t.ChatID, *t.AnnouncementID); err != nil {
		s.log.Warn("unpinning announcement failed", "task_id", t.ID, "error", err)
	}
	if err := s.msgr.EditMessage(ctx, t.ChatID, *t.AnnouncementID, text); err != nil {
		s.log.Warn("editing announcement failed", "task_id", t.ID, "error", err)
	}
}

func (s *Service) displayNames(ctx context.Context, subs []*models.Submission) map[int64]string {
	names := make(map[int64]string, len(subs))
	for _, sub := range subs {
		u, err := s.users.Get(ctx, sub.UserID)
		if err != nil {
			continue
		}
		if u.Name != nil && *u.Name != "" {
			names[sub.UserID] = *u.Name
		} else {
			names[sub.UserID] = u.FirstName
		}
	}
	return names
}

func (s *Service) renderAnnouncement(t *models.Task) string {
	unit := t.RewardUnit
	if unit == models.RewardCoinsPerGlory {
		unit = "coins"
	}
	return fmt.Sprintf(
		"📋 <b>New task:</b> %s\n🕐 %s – %s\n🎁 Reward: %s %s per glory gained\n🆔 Task ID: <code>%s</code>\n\nForward your inventory and use /finv to enter.",
		t.Description,
		t.StartAt.In(s.loc).Format("3:04 PM"),
		t.EndAt.In(s.loc).Format("3:04 PM"),
		trimFloat(t.RewardValue), unit, t.ID,
	)
}

// shortID returns an 8-character task id, enough to type by hand in a
// private chat.
func shortID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
