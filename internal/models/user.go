package models

import "time"

// User is a player known to the bot. The transport fields (FirstName,
// Username) are refreshed on every command; the game fields (Name, Clan,
// Level) come from verification snapshots.
type User struct {
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	Username  string    `json:"username,omitempty"`
	Name      *string   `json:"name,omitempty"`
	Clan      *string   `json:"clan,omitempty"`
	Level     *int      `json:"level,omitempty"`
	Verified  bool      `json:"verified"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group is a chat the bot has been added to.
type Group struct {
	ChatID   int64     `json:"chat_id"`
	Title    string    `json:"title"`
	JoinedAt time.Time `json:"joined_at"`
}

// Clan authorization record. Clans absent from the table are unauthorized
// unless they are in the default roster.
type Clan struct {
	Name       string `json:"name"`
	Authorized bool   `json:"authorized"`
}

// SudoUser is a non-owner identity granted elevated command access.
type SudoUser struct {
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	AddedAt   time.Time `json:"added_at"`
}
