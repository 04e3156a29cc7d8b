package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shinobicompass/bot/internal/chat"
	"github.com/shinobicompass/bot/internal/market"
	"github.com/shinobicompass/bot/internal/snapshot"
)

func (b *Bot) handleStart(ctx context.Context, cmd *chat.Command) error {
	b.reply(ctx, cmd.Msg, "👋 I track glory tasks, analyze black-market listings and convert currencies.\n"+
		"Use /calc, reply to a listing with /bm, or forward your game status here and reply /verify to get started.")
	return nil
}

// handleCalc converts between the game currencies:
// /calc <amount> <from>-<to>, with /calc <amount> <from> <to> tolerated.
func (b *Bot) handleCalc(ctx context.Context, cmd *chat.Command) error {
	amountArg, fromArg, toArg, ok := calcArgs(cmd.Args)
	if !ok {
		b.reply(ctx, cmd.Msg, "Usage: /calc <amount> <from>-<to>, e.g. /calc 100 coins-tokens")
		return nil
	}
	amount, err := strconv.ParseFloat(amountArg, 64)
	if err != nil || amount < 0 {
		b.reply(ctx, cmd.Msg, fmt.Sprintf("⚠️ %q is not an amount.", amountArg))
		return nil
	}
	from, err := market.ParseUnit(fromArg)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	to, err := market.ParseUnit(toArg)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	result, err := market.Convert(amount, from, to)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("💱 %s %s = <b>%s %s</b>",
		formatAmount(amount), from, formatAmount(result), to))
	return nil
}

// calcArgs splits the /calc arguments: the canonical hyphenated pair
// ("100 coins-tokens") or the spelled-out three-argument form.
func calcArgs(args []string) (amount, from, to string, ok bool) {
	switch len(args) {
	case 2:
		from, to, found := strings.Cut(args[1], "-")
		if !found || from == "" || to == "" {
			return "", "", "", false
		}
		return args[0], from, to, true
	case 3:
		return args[0], args[1], args[2], true
	}
	return "", "", "", false
}

// handleBM analyzes the replied-to black-market listing.
func (b *Bot) handleBM(ctx context.Context, cmd *chat.Command) error {
	if cmd.Msg.ReplyTo == nil {
		b.reply(ctx, cmd.Msg, "Reply to a black-market listing with /bm to analyze it.")
		return nil
	}
	text := cmd.Msg.ReplyTo.Content()
	if !strings.Contains(text, market.Marker) {
		b.reply(ctx, cmd.Msg, "That message is not a black-market listing.")
		return nil
	}
	deals := market.Analyze(text)
	if len(deals) == 0 {
		b.reply(ctx, cmd.Msg, "No underpriced deals in this listing.")
		return nil
	}
	b.reply(ctx, cmd.Msg, market.RenderDeals(deals))
	return nil
}

// handleXP projects experience progress from the replied-to status snapshot.
func (b *Bot) handleXP(ctx context.Context, cmd *chat.Command) error {
	if cmd.Msg.ReplyTo == nil {
		b.reply(ctx, cmd.Msg, "Reply to your forwarded game status with /xp.")
		return nil
	}
	proj, err := snapshot.Project(cmd.Msg.ReplyTo.Content())
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, proj.Render())
	return nil
}

// handleVerify reads the player's forwarded status and records their game
// identity. Private chats only; the snapshot must be fresh, forwarded from
// the game bot, and belong to the sender.
func (b *Bot) handleVerify(ctx context.Context, cmd *chat.Command) error {
	m := cmd.Msg
	if !m.IsPrivate() {
		b.reply(ctx, m, "🔒 Verification runs in our private chat. Forward your game status to me there and reply /verify.")
		return nil
	}
	if m.ReplyTo == nil {
		b.reply(ctx, m, "Forward your game status here, then reply to it with /verify.")
		return nil
	}
	if err := snapshot.VerifySource(m.ReplyTo, b.now(), true); err != nil {
		return b.replyErr(ctx, m, err)
	}
	profile, err := snapshot.ParseProfile(m.ReplyTo.Content(), m.From.ID)
	if err != nil {
		return b.replyErr(ctx, m, err)
	}

	var clan *string
	verified := false
	if profile.Clan != "" {
		clan = &profile.Clan
		verified, err = b.clanAuthorized(ctx, profile.Clan)
		if err != nil {
			return err
		}
	}
	if err := b.users.SetProfile(ctx, m.From.ID, profile.Name, profile.Level, clan, verified); err != nil {
		return b.replyErr(ctx, m, err)
	}

	if verified {
		b.reply(ctx, m, fmt.Sprintf("✅ Verified as <b>%s</b>, level %d, clan %s. You can join tasks now.",
			profile.Name, profile.Level, profile.Clan))
	} else if clan == nil {
		b.reply(ctx, m, "⚠️ Your profile was saved, but you are not in a clan. Join an authorized clan and verify again.")
	} else {
		b.reply(ctx, m, fmt.Sprintf("⚠️ Your profile was saved, but clan <b>%s</b> is not authorized.", profile.Clan))
	}
	b.logToChannel(ctx, fmt.Sprintf("🔎 Verification: %s (<code>%d</code>) level %d clan %q → verified=%t",
		profile.Name, m.From.ID, profile.Level, profile.Clan, verified))
	return nil
}

// handleFinv records the starting inventory for the active task. In a group
// the open task is inferred; in a private chat the task id is required.
func (b *Bot) handleFinv(ctx context.Context, cmd *chat.Command) error {
	glory, taskID, ok := b.submission(ctx, cmd)
	if !ok {
		return nil
	}
	t, err := b.tasks.SubmitStart(ctx, cmd.Msg.Chat.ID, taskID, cmd.Msg.From.ID, glory)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("📥 Starting glory <b>%d</b> recorded for “%s”. Send /linv with a fresh status before it ends.",
		glory, t.Description))
	return nil
}

// handleLinv records the final inventory.
func (b *Bot) handleLinv(ctx context.Context, cmd *chat.Command) error {
	glory, taskID, ok := b.submission(ctx, cmd)
	if !ok {
		return nil
	}
	t, err := b.tasks.SubmitEnd(ctx, cmd.Msg.Chat.ID, taskID, cmd.Msg.From.ID, glory)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("📤 Final glory <b>%d</b> recorded for “%s”. Results follow when the window closes.",
		glory, t.Description))
	return nil
}

// submission extracts the glory value from the replied-to snapshot and the
// target task id from the arguments. ok is false when the user already got
// feedback.
func (b *Bot) submission(ctx context.Context, cmd *chat.Command) (glory int64, taskID string, ok bool) {
	m := cmd.Msg
	if m.IsPrivate() && len(cmd.Args) == 0 {
		b.reply(ctx, m, "In a private chat, include the task id: /"+cmd.Name+" <task_id>")
		return 0, "", false
	}
	if len(cmd.Args) > 0 {
		taskID = cmd.Args[0]
	}
	if m.ReplyTo == nil {
		b.reply(ctx, m, "Reply to your freshly forwarded game status with /"+cmd.Name+".")
		return 0, "", false
	}
	if err := snapshot.VerifySource(m.ReplyTo, b.now(), true); err != nil {
		_ = b.replyErr(ctx, m, err)
		return 0, "", false
	}
	glory, err := snapshot.Glory(m.ReplyTo.Content())
	if err != nil {
		_ = b.replyErr(ctx, m, err)
		return 0, "", false
	}
	return glory, taskID, true
}

// handleStatus shows the caller's submission state for the active task.
func (b *Bot) handleStatus(ctx context.Context, cmd *chat.Command) error {
	t, sub, err := b.tasks.Status(ctx, cmd.Msg.Chat.ID, cmd.Msg.From.ID)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	switch {
	case sub == nil:
		b.reply(ctx, cmd.Msg, fmt.Sprintf("📋 “%s” is active and you have not entered yet. Send /finv with a fresh status.", t.Description))
	case sub.EndValue == nil:
		b.reply(ctx, cmd.Msg, fmt.Sprintf("📋 “%s”: starting glory %d recorded. Send /linv before the window closes.", t.Description, sub.StartValue))
	default:
		b.reply(ctx, cmd.Msg, fmt.Sprintf("📋 “%s”: start %d, final %d. You are done.", t.Description, sub.StartValue, *sub.EndValue))
	}
	return nil
}

func (b *Bot) handleTaskResult(ctx context.Context, cmd *chat.Command) error {
	results, err := b.tasks.Results(ctx, cmd.Msg.Chat.ID)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, results)
	return nil
}

// handleTask creates a task; the announcement it posts is the confirmation.
func (b *Bot) handleTask(ctx context.Context, cmd *chat.Command) error {
	if !cmd.Msg.IsGroup() {
		b.reply(ctx, cmd.Msg, "Tasks are created inside a group.")
		return nil
	}
	if _, err := b.tasks.Create(ctx, cmd.Msg.Chat.ID, cmd.Msg.From.ID, cmd.ArgText()); err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	return nil
}

func (b *Bot) handleEndTask(ctx context.Context, cmd *chat.Command) error {
	if err := b.tasks.EndNow(ctx, cmd.Msg.Chat.ID); err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	return nil
}

func (b *Bot) handleCancelTask(ctx context.Context, cmd *chat.Command) error {
	t, err := b.tasks.Cancel(ctx, cmd.Msg.Chat.ID)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("❌ Task “%s” canceled. Every submitter has been notified.", t.Description))
	return nil
}

func (b *Bot) handleClearAll(ctx context.Context, cmd *chat.Command) error {
	n, err := b.tasks.Clear(ctx, cmd.Msg.Chat.ID)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("🧹 Removed %d task(s) and unpinned everything.", n))
	return nil
}

func (b *Bot) handleAuth(ctx context.Context, cmd *chat.Command) error {
	return b.setClanAuthorization(ctx, cmd, true)
}

func (b *Bot) handleUnauth(ctx context.Context, cmd *chat.Command) error {
	return b.setClanAuthorization(ctx, cmd, false)
}

func (b *Bot) setClanAuthorization(ctx context.Context, cmd *chat.Command, authorized bool) error {
	name := strings.TrimSpace(cmd.ArgText())
	if name == "" {
		b.reply(ctx, cmd.Msg, "Usage: /"+cmd.Name+" <clan name>")
		return nil
	}
	if !authorized && defaultClans[strings.ToLower(name)] {
		b.reply(ctx, cmd.Msg, fmt.Sprintf("⚠️ <b>%s</b> is a default clan and stays authorized.", name))
		return nil
	}
	if err := b.clans.SetAuthorized(ctx, name, authorized); err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	if authorized {
		b.reply(ctx, cmd.Msg, fmt.Sprintf("✅ Clan <b>%s</b> authorized.", name))
	} else {
		b.reply(ctx, cmd.Msg, fmt.Sprintf("✅ Clan <b>%s</b> unauthorized.", name))
	}
	return nil
}

// handleAddSudo grants elevated access, by reply or by numeric id.
func (b *Bot) handleAddSudo(ctx context.Context, cmd *chat.Command) error {
	userID, name, ok := b.targetUser(ctx, cmd)
	if !ok {
		return nil
	}
	if err := b.sudo.Add(ctx, userID, name); err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("✅ <code>%d</code> added to the sudo list.", userID))
	return nil
}

func (b *Bot) handleRmSudo(ctx context.Context, cmd *chat.Command) error {
	userID, _, ok := b.targetUser(ctx, cmd)
	if !ok {
		return nil
	}
	removed, err := b.sudo.Remove(ctx, userID)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	if !removed {
		b.reply(ctx, cmd.Msg, fmt.Sprintf("<code>%d</code> was not on the sudo list.", userID))
		return nil
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("✅ <code>%d</code> removed from the sudo list.", userID))
	return nil
}

func (b *Bot) handleSudoList(ctx context.Context, cmd *chat.Command) error {
	list, err := b.sudo.List(ctx)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	if len(list) == 0 {
		b.reply(ctx, cmd.Msg, "The sudo list is empty.")
		return nil
	}
	var sb strings.Builder
	sb.WriteString("👥 <b>Sudo users</b>\n")
	for _, u := range list {
		fmt.Fprintf(&sb, "• %s (<code>%d</code>)\n", u.FirstName, u.UserID)
	}
	b.reply(ctx, cmd.Msg, sb.String())
	return nil
}

// handleStats reports roster sizes to the owner and sudo users.
func (b *Bot) handleStats(ctx context.Context, cmd *chat.Command) error {
	users, err := b.users.Count(ctx)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	sudo, err := b.sudo.List(ctx)
	if err != nil {
		return b.replyErr(ctx, cmd.Msg, err)
	}
	b.reply(ctx, cmd.Msg, fmt.Sprintf("📊 %d registered players, %d sudo users.", users, len(sudo)))
	return nil
}

// targetUser resolves the user a roster command acts on: the replied-to
// sender when present, otherwise a numeric id argument.
func (b *Bot) targetUser(ctx context.Context, cmd *chat.Command) (int64, string, bool) {
	if r := cmd.Msg.ReplyTo; r != nil && r.From != nil {
		return r.From.ID, r.From.FirstName, true
	}
	if len(cmd.Args) == 1 {
		if id, err := strconv.ParseInt(cmd.Args[0], 10, 64); err == nil && id > 0 {
			return id, "", true
		}
	}
	b.reply(ctx, cmd.Msg, "Reply to the user or pass their numeric id: /"+cmd.Name+" <user_id>")
	return 0, "", false
}

// formatAmount trims float noise from user-visible quantities.
func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
