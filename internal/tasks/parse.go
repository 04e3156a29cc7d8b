package tasks

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shinobicompass/bot/internal/models"
)

// Parse errors. All of them read as user feedback; handlers reply with the
// error text directly.
var (
	ErrBadFormat  = errors.New("could not read the task, expected: <start>-<end> <description> (<reward> gems|tokens|coins/glory)")
	ErrBadClock   = errors.New("times must be on a 12-hour clock, like 5:00 PM or 11 AM")
	ErrWindowEnd  = errors.New("the end time must come after the start time, within the same day")
	ErrWindowPast = errors.New("that window is already in the past")
)

// Definition is a parsed /task command, ready to persist.
type Definition struct {
	Description string
	RewardValue float64
	RewardUnit  string
	StartAt     time.Time
	EndAt       time.Time
}

// defRe captures <start>-<end> <description> (<value> <unit>). The clock
// halves are shaped here and validated in atClock, so an impossible hour
// still gets its own message.
var defRe = regexp.MustCompile(`(?i)^\s*(\d{1,2}(?::\d{2})?\s*[AP]M)\s*-\s*(\d{1,2}(?::\d{2})?\s*[AP]M)\s+(.+?)\s*\(\s*(\d+(?:\.\d+)?)\s*(gems?|tokens?|coins/glory)\s*\)\s*$`)

// clockLayouts are tried in order against the uppercased time half.
var clockLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM"}

// ParseDefinition reads the argument text of a /task command. Clock times
// are interpreted on today's date in loc; the window must lie in the future
// and may not cross midnight.
func ParseDefinition(text string, now time.Time, loc *time.Location) (*Definition, error) {
	m := defRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrBadFormat
	}

	start, err := atClock(m[1], now, loc)
	if err != nil {
		return nil, err
	}
	end, err := atClock(m[2], now, loc)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, ErrWindowEnd
	}
	if start.Before(now) {
		return nil, ErrWindowPast
	}

	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("%w: bad reward value %q", ErrBadFormat, m[4])
	}

	return &Definition{
		Description: strings.TrimSpace(m[3]),
		RewardValue: value,
		RewardUnit:  canonicalUnit(m[5]),
		StartAt:     start,
		EndAt:       end,
	}, nil
}

// atClock parses a 12-hour clock time and pins it to today's date in loc.
func atClock(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		today := now.In(loc)
		return time.Date(today.Year(), today.Month(), today.Day(),
			t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadClock, s)
}

func canonicalUnit(s string) string {
	switch strings.ToLower(s) {
	case "gem", "gems":
		return models.RewardGems
	case "token", "tokens":
		return models.RewardTokens
	default:
		return models.RewardCoinsPerGlory
	}
}
