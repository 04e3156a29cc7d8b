package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/shinobicompass/bot/internal/models"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestParseDefinition(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)

	def, err := ParseDefinition("5:00 PM-6:30 PM Collect glory (2 gems)", now, loc)
	if err != nil {
		t.Fatal(err)
	}
	if def.Description != "Collect glory" {
		t.Errorf("description = %q", def.Description)
	}
	if def.RewardValue != 2 || def.RewardUnit != models.RewardGems {
		t.Errorf("reward = %v %s", def.RewardValue, def.RewardUnit)
	}
	wantStart := time.Date(2026, 3, 10, 17, 0, 0, 0, loc)
	wantEnd := time.Date(2026, 3, 10, 18, 30, 0, 0, loc)
	if !def.StartAt.Equal(wantStart) || !def.EndAt.Equal(wantEnd) {
		t.Errorf("window = %v – %v", def.StartAt, def.EndAt)
	}
}

func TestParseDefinitionUnits(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, loc)

	cases := []struct {
		text string
		unit string
		val  float64
	}{
		{"11 AM-12:30 PM Raid day (6 tokens)", models.RewardTokens, 6},
		{"11 AM-12:30 PM Raid day (1.5 coins/glory)", models.RewardCoinsPerGlory, 1.5},
		{"11 AM-12:30 PM Raid day (1 gem)", models.RewardGems, 1},
	}
	for _, c := range cases {
		def, err := ParseDefinition(c.text, now, loc)
		if err != nil {
			t.Fatalf("%q: %v", c.text, err)
		}
		if def.RewardUnit != c.unit || def.RewardValue != c.val {
			t.Errorf("%q: reward = %v %s", c.text, def.RewardValue, def.RewardUnit)
		}
	}
}

func TestParseDefinitionRejects(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2026, 3, 10, 19, 0, 0, 0, loc) // 7 PM

	cases := []struct {
		text string
		want error
	}{
		{"collect glory please", ErrBadFormat},
		{"8 PM-9 PM Collect glory (2 diamonds)", ErrBadFormat},
		{"13:00 PM-9 PM Collect glory (2 gems)", ErrBadClock},
		{"9 PM-8 PM Collect glory (2 gems)", ErrWindowEnd},
		{"9 PM-9 PM Collect glory (2 gems)", ErrWindowEnd},
		{"5 PM-6 PM Collect glory (2 gems)", ErrWindowPast}, // already over today
		{"11 PM-1 AM Overnight run (2 gems)", ErrWindowEnd}, // cross-midnight
	}
	for _, c := range cases {
		_, err := ParseDefinition(c.text, now, loc)
		if !errors.Is(err, c.want) {
			t.Errorf("%q: err = %v, want %v", c.text, err, c.want)
		}
	}
}
