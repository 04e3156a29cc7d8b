package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// BotAPI talks to a Telegram-style bot HTTP API. Only the handful of methods
// the bot needs are implemented; all payloads are JSON.
type BotAPI struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Messenger = (*BotAPI)(nil)

func NewBotAPI(baseURL, token string) *BotAPI {
	return &BotAPI{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (b *BotAPI) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", b.baseURL, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat api %s: %w", method, err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("chat api %s: decoding response: %w", method, err)
	}
	if !ar.OK {
		return fmt.Errorf("chat api %s: %s", method, ar.Description)
	}
	if out != nil {
		return json.Unmarshal(ar.Result, out)
	}
	return nil
}

func (b *BotAPI) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if opts != nil {
		if opts.ReplyTo != 0 {
			payload["reply_to_message_id"] = opts.ReplyTo
		}
		if opts.DisablePreview {
			payload["disable_web_page_preview"] = true
		}
	}
	var sent Message
	if err := b.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, err
	}
	return sent.ID, nil
}

func (b *BotAPI) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	return b.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}, nil)
}

func (b *BotAPI) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return b.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (b *BotAPI) PinMessage(ctx context.Context, chatID, messageID int64) error {
	return b.call(ctx, "pinChatMessage", map[string]any{
		"chat_id":              chatID,
		"message_id":           messageID,
		"disable_notification": true,
	}, nil)
}

func (b *BotAPI) UnpinMessage(ctx context.Context, chatID, messageID int64) error {
	return b.call(ctx, "unpinChatMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (b *BotAPI) UnpinAllMessages(ctx context.Context, chatID int64) error {
	return b.call(ctx, "unpinAllChatMessages", map[string]any{"chat_id": chatID}, nil)
}

// IsChatAdmin queries the member's live status; results are never cached so
// demotions take effect on the next command.
func (b *BotAPI) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	var member struct {
		Status string `json:"status"`
	}
	err := b.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	if err != nil {
		return false, err
	}
	return member.Status == "administrator" || member.Status == "creator", nil
}
