package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/repository"
)

// withFlood runs the rate limiter before the handler. A rejection replies
// with the gate's feedback and stops; a warning is delivered and the command
// still runs.
func (b *Bot) withFlood(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		v, err := b.flood.Check(ctx, cmd.Msg.From.ID)
		if err != nil {
			// A broken limiter must not take the bot down with it.
			b.log.Error("flood check failed", "user_id", cmd.Msg.From.ID, "error", err)
			return next(ctx, cmd)
		}
		if v.Response != "" {
			b.reply(ctx, cmd.Msg, v.Response)
		}
		if !v.Allowed {
			return nil
		}
		return next(ctx, cmd)
	}
}

// withSaveInfo keeps the user and group records current on every command.
func (b *Bot) withSaveInfo(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		b.saveInfo(ctx, cmd.Msg)
		return next(ctx, cmd)
	}
}

// saveInfo upserts the sender and, in a group, the chat. A brand-new group
// is reported to the log channel. Persistence failures are logged but never
// block handling.
func (b *Bot) saveInfo(ctx context.Context, m *chat.Message) {
	if err := b.users.Upsert(ctx, m.From.ID, m.From.FirstName, m.From.Username); err != nil {
		b.log.Error("user upsert failed", "user_id", m.From.ID, "error", err)
	}
	if m.IsGroup() {
		isNew, err := b.groups.Upsert(ctx, m.Chat.ID, m.Chat.Title)
		if err != nil {
			b.log.Error("group upsert failed", "chat_id", m.Chat.ID, "error", err)
		} else if isNew {
			b.logToChannel(ctx, fmt.Sprintf("➕ Added to group <b>%s</b> (<code>%d</code>)",
				m.Chat.Title, m.Chat.ID))
		}
	}
}

// requireVerified admits only players whose snapshot-verified clan is still
// authorized. The default clans stay authorized even if the table says
// otherwise.
func (b *Bot) requireVerified(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		u, err := b.users.Get(ctx, cmd.Msg.From.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if u == nil || !u.Verified || u.Clan == nil {
			b.reply(ctx, cmd.Msg, "🔒 You need to verify first. Forward your game status to me in a private chat and reply /verify.")
			return nil
		}
		ok, err := b.clanAuthorized(ctx, *u.Clan)
		if err != nil {
			return err
		}
		if !ok {
			b.reply(ctx, cmd.Msg, "🔒 Your clan is not authorized to take part.")
			return nil
		}
		return next(ctx, cmd)
	}
}

func (b *Bot) requireChatAdmin(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		ok, err := b.roles.CanManageChat(ctx, cmd.Msg.Chat.ID, cmd.Msg.From.ID)
		if err != nil {
			return err
		}
		if !ok {
			b.reply(ctx, cmd.Msg, "🚫 Only group admins can use this command.")
			return nil
		}
		return next(ctx, cmd)
	}
}

func (b *Bot) requireOwnerOrSudo(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		ok, err := b.roles.IsOwnerOrSudo(ctx, cmd.Msg.From.ID)
		if err != nil {
			return err
		}
		if !ok {
			b.reply(ctx, cmd.Msg, "🚫 This command is restricted.")
			return nil
		}
		return next(ctx, cmd)
	}
}

func (b *Bot) requireOwner(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, cmd *chat.Command) error {
		if !b.roles.IsOwner(cmd.Msg.From.ID) {
			b.reply(ctx, cmd.Msg, "🚫 This command is restricted.")
			return nil
		}
		return next(ctx, cmd)
	}
}
