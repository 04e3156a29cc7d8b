// Package snapshot extracts structured fields from forwarded player-status
// messages and performs the authenticity checks that make them trustworthy
// evidence. Every call is independent; nothing here touches storage.
package snapshot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shinobicompass/bot/internal/chat"
)

// TrustedSenderID is the game bot all snapshots must be forwarded from.
const TrustedSenderID int64 = 5416991774

// Freshness is how recent a snapshot must be when the calling flow requires
// recency.
const Freshness = time.Minute

// Authenticity failures, ordered by the check that produced them.
var (
	ErrNotForwarded    = errors.New("snapshot must be a forwarded status message")
	ErrUntrustedSender = errors.New("snapshot was not forwarded from the game bot")
	ErrStale           = errors.New("snapshot is older than one minute")
	ErrForeignSnapshot = errors.New("snapshot belongs to a different player")
)

// MissingFieldsError names exactly which labeled fields could not be
// extracted from the snapshot text.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "could not extract fields: " + strings.Join(e.Fields, ", ")
}

// Label patterns from the game's status format. The box-drawing and emoji
// prefixes are part of the wire format.
var (
	gloryRe = regexp.MustCompile(`My Glory:\s*(\d+)`)
	idRe    = regexp.MustCompile(`┣ 🆔 ID[:：]?\s*(\d+)`)
	nameRe  = regexp.MustCompile(`┣ 👤 Name[:：]?\s*(.+)`)
	levelRe = regexp.MustCompile(`┣ 🎚️ Level[:：]?\s*(\d+)`)
	clanRe  = regexp.MustCompile(`🏯 Clan[:：]?\s*(.+)`)
)

// VerifySource checks that the message is a forward from the trusted game
// bot and, when requireFresh is set, that it is recent enough to count as
// current evidence.
func VerifySource(m *chat.Message, now time.Time, requireFresh bool) error {
	if m.ForwardFrom == nil {
		return ErrNotForwarded
	}
	if m.ForwardFrom.ID != TrustedSenderID {
		return ErrUntrustedSender
	}
	if requireFresh && now.Sub(m.Time()) > Freshness {
		return ErrStale
	}
	return nil
}

// Glory extracts the glory counter from a snapshot.
func Glory(text string) (int64, error) {
	match := gloryRe.FindStringSubmatch(text)
	if match == nil {
		return 0, &MissingFieldsError{Fields: []string{"Glory"}}
	}
	return strconv.ParseInt(match[1], 10, 64)
}

// Profile is the identity block of a status snapshot.
type Profile struct {
	UserID int64
	Name   string
	Level  int
	Clan   string // empty when the player has no clan
}

// ParseProfile extracts the identity fields and rejects snapshots whose
// embedded user id does not match the acting user, so players cannot verify
// with someone else's status message.
func ParseProfile(text string, actingUserID int64) (*Profile, error) {
	idMatch := idRe.FindStringSubmatch(text)
	if idMatch == nil {
		return nil, &MissingFieldsError{Fields: []string{"ID"}}
	}
	embeddedID, err := strconv.ParseInt(idMatch[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded id: %w", err)
	}
	if embeddedID != actingUserID {
		return nil, ErrForeignSnapshot
	}

	nameMatch := nameRe.FindStringSubmatch(text)
	levelMatch := levelRe.FindStringSubmatch(text)
	clanMatch := clanRe.FindStringSubmatch(text)

	var missing []string
	if nameMatch == nil {
		missing = append(missing, "Name")
	}
	if levelMatch == nil {
		missing = append(missing, "Level")
	}
	if clanMatch == nil {
		missing = append(missing, "Clan")
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	level, err := strconv.Atoi(levelMatch[1])
	if err != nil {
		return nil, fmt.Errorf("parsing level: %w", err)
	}
	clan := strings.TrimSpace(clanMatch[1])
	if strings.EqualFold(clan, "none") {
		clan = ""
	}
	return &Profile{
		UserID: embeddedID,
		Name:   strings.TrimSpace(nameMatch[1]),
		Level:  level,
		Clan:   clan,
	}, nil
}
