// Package bot routes inbound chat messages to command handlers behind the
// flood, registration, verification and authorization middleware chain.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/flood"
	"github.com/shinobicompass/bot/internal/market"
	"github.com/shinobicompass/bot/internal/models"
	"github.com/shinobicompass/bot/internal/snapshot"
	"github.com/shinobicompass/bot/internal/tasks"
)

// Storage surfaces the bot needs; the repository types satisfy them.
type UserStore interface {
	Upsert(ctx context.Context, userID int64, firstName, username string) error
	SetProfile(ctx context.Context, userID int64, name string, level int, clan *string, verified bool) error
	Get(ctx context.Context, userID int64) (*models.User, error)
	Count(ctx context.Context) (int64, error)
}

type GroupStore interface {
	Upsert(ctx context.Context, chatID int64, title string) (isNew bool, err error)
}

type ClanStore interface {
	SetAuthorized(ctx context.Context, name string, authorized bool) error
	IsAuthorized(ctx context.Context, name string) (bool, error)
}

type SudoStore interface {
	Add(ctx context.Context, userID int64, firstName string) error
	Remove(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context) ([]*models.SudoUser, error)
}

// FloodGate is the per-user rate limiter in front of every command.
type FloodGate interface {
	Check(ctx context.Context, userID int64) (flood.Verdict, error)
}

// RoleGate answers the three authorization tiers; *auth.Gate satisfies it.
type RoleGate interface {
	IsOwner(userID int64) bool
	IsOwnerOrSudo(ctx context.Context, userID int64) (bool, error)
	CanManageChat(ctx context.Context, chatID, userID int64) (bool, error)
}

// TaskService is the lifecycle surface the command handlers drive.
type TaskService interface {
	Create(ctx context.Context, chatID, createdBy int64, text string) (*models.Task, error)
	SubmitStart(ctx context.Context, chatID int64, taskID string, userID, value int64) (*models.Task, error)
	SubmitEnd(ctx context.Context, chatID int64, taskID string, userID, value int64) (*models.Task, error)
	EndNow(ctx context.Context, chatID int64) error
	Cancel(ctx context.Context, chatID int64) (*models.Task, error)
	Clear(ctx context.Context, chatID int64) (int64, error)
	Results(ctx context.Context, chatID int64) (string, error)
	Status(ctx context.Context, chatID, userID int64) (*models.Task, *models.Submission, error)
}

// Clans every player may verify into regardless of the authorization table.
var defaultClans = map[string]bool{
	"uzumaki":   true,
	"namikaze":  true,
	"uchiha":    true,
	"otsutsuki": true,
}

type HandlerFunc func(ctx context.Context, cmd *chat.Command) error

type Middleware func(HandlerFunc) HandlerFunc

type Bot struct {
	msgr   chat.Messenger
	flood  FloodGate
	roles  RoleGate
	tasks  TaskService
	users  UserStore
	groups GroupStore
	clans  ClanStore
	sudo   SudoStore
	log    *slog.Logger

	logChannelID int64 // 0 disables channel reports

	routes map[string]HandlerFunc
	now    func() time.Time
}

func New(msgr chat.Messenger, fg FloodGate, roles RoleGate, tasksSvc TaskService,
	users UserStore, groups GroupStore, clans ClanStore, sudo SudoStore,
	logChannelID int64, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	b := &Bot{
		msgr:         msgr,
		flood:        fg,
		roles:        roles,
		tasks:        tasksSvc,
		users:        users,
		groups:       groups,
		clans:        clans,
		sudo:         sudo,
		log:          log,
		logChannelID: logChannelID,
		now:          time.Now,
	}
	b.routes = b.buildRoutes()
	return b
}

// buildRoutes wires every command through its middleware chain. Order within
// a chain is fixed: flood control, then registration, then verification,
// then authorization, then the handler.
func (b *Bot) buildRoutes() map[string]HandlerFunc {
	public := func(h HandlerFunc) HandlerFunc {
		return b.withFlood(b.withSaveInfo(h))
	}
	verified := func(h HandlerFunc) HandlerFunc {
		return b.withFlood(b.withSaveInfo(b.requireVerified(h)))
	}
	chatAdmin := func(h HandlerFunc) HandlerFunc {
		return b.withFlood(b.withSaveInfo(b.requireChatAdmin(h)))
	}
	ownerOrSudo := func(h HandlerFunc) HandlerFunc {
		return b.withFlood(b.withSaveInfo(b.requireOwnerOrSudo(h)))
	}
	owner := func(h HandlerFunc) HandlerFunc {
		return b.withFlood(b.withSaveInfo(b.requireOwner(h)))
	}

	return map[string]HandlerFunc{
		"start":      public(b.handleStart),
		"calc":       public(b.handleCalc),
		"bm":         public(b.handleBM),
		"xp":         public(b.handleXP),
		"verify":     public(b.handleVerify),
		"finv":       verified(b.handleFinv),
		"linv":       verified(b.handleLinv),
		"status":     verified(b.handleStatus),
		"taskresult": public(b.handleTaskResult),
		"task":       chatAdmin(b.handleTask),
		"endtask":    chatAdmin(b.handleEndTask),
		"canceltask": chatAdmin(b.handleCancelTask),
		"clearall":   chatAdmin(b.handleClearAll),
		"auth":       ownerOrSudo(b.handleAuth),
		"unauth":     ownerOrSudo(b.handleUnauth),
		"addsudo":    owner(b.handleAddSudo),
		"rmsudo":     owner(b.handleRmSudo),
		"sdlist":     owner(b.handleSudoList),
		"stats":      ownerOrSudo(b.handleStats),
	}
}

// HandleMessage is the entry point for one inbound message. Unknown
// commands are ignored; plain messages only get the passive market scan.
func (b *Bot) HandleMessage(ctx context.Context, m *chat.Message) {
	if m == nil || m.From == nil {
		return
	}
	cmd, ok := chat.ParseCommand(m)
	if !ok {
		b.scanMarket(ctx, m)
		return
	}
	h, ok := b.routes[cmd.Name]
	if !ok {
		return
	}
	if err := h(ctx, cmd); err != nil {
		b.log.Error("command failed", "command", cmd.Name,
			"chat_id", m.Chat.ID, "user_id", m.From.ID, "error", err)
	}
}

// scanMarket answers any message carrying a black-market listing with the
// underpriced deals it contains. Scanned senders get the same registration
// upsert as command senders; the rest of the middleware does not apply.
func (b *Bot) scanMarket(ctx context.Context, m *chat.Message) {
	text := m.Content()
	if !strings.Contains(text, market.Marker) {
		return
	}
	b.saveInfo(ctx, m)
	deals := market.Analyze(text)
	if len(deals) == 0 {
		return
	}
	b.reply(ctx, m, market.RenderDeals(deals))
}

// reply sends a best-effort reply to the message.
func (b *Bot) reply(ctx context.Context, m *chat.Message, text string) {
	if _, err := b.msgr.SendMessage(ctx, m.Chat.ID, text, &chat.SendOptions{ReplyTo: m.ID}); err != nil {
		b.log.Warn("reply failed", "chat_id", m.Chat.ID, "error", err)
	}
}

// userErrors are the conflicts and input mistakes whose text is meant for
// the user verbatim.
var userErrors = []error{
	tasks.ErrBadFormat, tasks.ErrBadClock, tasks.ErrWindowEnd, tasks.ErrWindowPast,
	tasks.ErrActiveTask, tasks.ErrNoOpenTask, tasks.ErrNotOpen, tasks.ErrWindowClosed,
	tasks.ErrAlreadyStarted, tasks.ErrNoStartValue, tasks.ErrAlreadyFinished,
	tasks.ErrNoResults,
	snapshot.ErrNotForwarded, snapshot.ErrUntrustedSender, snapshot.ErrStale,
	snapshot.ErrForeignSnapshot,
	market.ErrUnknownUnit,
}

// replyErr turns an error into user feedback. Known conflicts are relayed
// as-is; anything else is logged and answered generically, and returned so
// the dispatcher records it.
func (b *Bot) replyErr(ctx context.Context, m *chat.Message, err error) error {
	for _, known := range userErrors {
		if errors.Is(err, known) {
			b.reply(ctx, m, "⚠️ "+capitalize(err.Error()))
			return nil
		}
	}
	var missing *snapshot.MissingFieldsError
	if errors.As(err, &missing) {
		b.reply(ctx, m, "⚠️ "+capitalize(err.Error()))
		return nil
	}
	b.reply(ctx, m, "Something went wrong, please try again.")
	return err
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// logToChannel posts operational notices to the configured log channel.
func (b *Bot) logToChannel(ctx context.Context, text string) {
	if b.logChannelID == 0 {
		return
	}
	if _, err := b.msgr.SendMessage(ctx, b.logChannelID, text, nil); err != nil {
		b.log.Warn("log channel post failed", "error", err)
	}
}

// clanAuthorized applies the default-roster exemption before consulting the
// authorization table.
func (b *Bot) clanAuthorized(ctx context.Context, name string) (bool, error) {
	if defaultClans[strings.ToLower(name)] {
		return true, nil
	}
	return b.clans.IsAuthorized(ctx, name)
}
