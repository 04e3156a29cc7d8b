// Package auth decides who may do what: the three-tier role gate for bot
// commands and the JWT login for the owner dashboard.
package auth

import "context"

// SudoLookup answers whether a user is on the persisted sudo roster.
type SudoLookup interface {
	Exists(ctx context.Context, userID int64) (bool, error)
}

// ChatAdminChecker queries the platform's live admin status for a chat.
type ChatAdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Gate evaluates roles fresh on every call; nothing is cached across
// requests, so sudo removal and chat demotion take effect immediately.
type Gate struct {
	OwnerID int64
	Sudo    SudoLookup
	Chat    ChatAdminChecker
}

func NewGate(ownerID int64, sudo SudoLookup, chat ChatAdminChecker) *Gate {
	return &Gate{OwnerID: ownerID, Sudo: sudo, Chat: chat}
}

func (g *Gate) IsOwner(userID int64) bool {
	return userID == g.OwnerID
}

// IsOwnerOrSudo is the gate for owner-delegable operations.
func (g *Gate) IsOwnerOrSudo(ctx context.Context, userID int64) (bool, error) {
	if g.IsOwner(userID) {
		return true, nil
	}
	return g.Sudo.Exists(ctx, userID)
}

// CanManageChat is the chat-scoped gate: owner, then sudo, then the
// platform's own administrator/creator status for this chat. The first
// matching tier grants access.
func (g *Gate) CanManageChat(ctx context.Context, chatID, userID int64) (bool, error) {
	ok, err := g.IsOwnerOrSudo(ctx, userID)
	if err != nil || ok {
		return ok, err
	}
	return g.Chat.IsChatAdmin(ctx, chatID, userID)
}
