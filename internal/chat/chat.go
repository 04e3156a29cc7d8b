// Package chat defines the normalized message types the bot consumes and the
// Messenger interface it sends through. The concrete transport is a thin
// JSON-over-HTTP client (botapi.go); everything else in the codebase depends
// only on the interface.
package chat

import (
	"context"
	"time"
)

// Chat types as reported by the transport.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

type Message struct {
	ID          int64    `json:"message_id"`
	From        *User    `json:"from,omitempty"`
	Chat        Chat     `json:"chat"`
	Date        int64    `json:"date"`
	Text        string   `json:"text,omitempty"`
	Caption     string   `json:"caption,omitempty"`
	ReplyTo     *Message `json:"reply_to_message,omitempty"`
	ForwardFrom *User    `json:"forward_from,omitempty"`
}

// Content returns the message text, falling back to the media caption.
func (m *Message) Content() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func (m *Message) Time() time.Time {
	return time.Unix(m.Date, 0)
}

func (m *Message) IsPrivate() bool {
	return m.Chat.Type == ChatPrivate
}

func (m *Message) IsGroup() bool {
	return m.Chat.Type == ChatGroup || m.Chat.Type == ChatSupergroup
}

// SendOptions carries the optional parameters of an outbound message.
type SendOptions struct {
	ReplyTo        int64
	DisablePreview bool
}

// Messenger is the outbound side of the chat transport. Implementations must
// be safe for concurrent use.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (int64, error)
	EditMessage(ctx context.Context, chatID, messageID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	PinMessage(ctx context.Context, chatID, messageID int64) error
	UnpinMessage(ctx context.Context, chatID, messageID int64) error
	UnpinAllMessages(ctx context.Context, chatID int64) error
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}
