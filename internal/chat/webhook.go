package chat

import (
	"encoding/json"
	"errors"
	"io"
)

// Update is the envelope the transport POSTs to the webhook endpoint.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// ErrNoMessage is returned for updates that carry no message payload
// (edits, member events and other update kinds the bot does not consume).
var ErrNoMessage = errors.New("update contains no message")

// DecodeUpdate reads one webhook update body and returns its message.
func DecodeUpdate(r io.Reader) (*Message, error) {
	var u Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return nil, err
	}
	if u.Message == nil {
		return nil, ErrNoMessage
	}
	return u.Message, nil
}
