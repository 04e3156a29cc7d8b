// Package flood rate-limits command traffic per user: a short cooldown
// between commands, an escalating warning track for bursts, and temporary
// suspensions whose duration grows with repeat offenses.
package flood

import (
	"context"
	"fmt"
	"time"
)

// Config holds the gate's thresholds. Defaults mirror the bot's published
// behavior; values are set once at construction and never mutated at runtime.
type Config struct {
	Cooldown      time.Duration
	SpamWindow    time.Duration
	SpamThreshold int
	WarnLimit     int
	Suspensions   []time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cooldown:      3 * time.Second,
		SpamWindow:    10 * time.Second,
		SpamThreshold: 5,
		WarnLimit:     3,
		Suspensions:   []time.Duration{30 * time.Minute, time.Hour, 24 * time.Hour},
	}
}

// State is one user's flood-control document.
type State struct {
	Activity       []time.Time `json:"activity"`
	Warnings       int         `json:"warnings"`
	SuspendedUntil *time.Time  `json:"suspended_until,omitempty"`
}

// Store persists per-user state. Load returns a zero-value State for unknown
// users.
type Store interface {
	Load(ctx context.Context, userID int64) (*State, error)
	Save(ctx context.Context, userID int64, s *State) error
}

// Verdict is the gate's decision for one command. Response carries
// user-visible feedback; a warning is delivered alongside an allowed
// command, a rejection instead of it.
type Verdict struct {
	Allowed  bool
	Response string
}

type Gate struct {
	cfg   Config
	store Store
	now   func() time.Time
}

func NewGate(cfg Config, store Store) *Gate {
	return &Gate{cfg: cfg, store: store, now: time.Now}
}

// Check records one command from the user and decides whether it may run.
func (g *Gate) Check(ctx context.Context, userID int64) (Verdict, error) {
	now := g.now()
	st, err := g.store.Load(ctx, userID)
	if err != nil {
		return Verdict{}, err
	}

	if st.SuspendedUntil != nil {
		if now.Before(*st.SuspendedUntil) {
			remaining := st.SuspendedUntil.Sub(now).Round(time.Second)
			return Verdict{Response: fmt.Sprintf("🚫 You are temporarily paused. Try again after %s.", remaining)}, nil
		}
		// Suspension served. The warning count survives so repeat
		// offenders climb the suspension ladder; it only decays when
		// the whole state expires from the store.
		st.SuspendedUntil = nil
		st.Activity = nil
	}

	recent := st.Activity[:0:0]
	cutoff := now.Add(-g.cfg.SpamWindow)
	for _, t := range st.Activity {
		if !t.Before(cutoff) {
			recent = append(recent, t)
		}
	}

	if n := len(recent); n > 0 && now.Sub(recent[n-1]) < g.cfg.Cooldown {
		return Verdict{Response: fmt.Sprintf("⏳ Please wait %s between commands.", g.cfg.Cooldown)}, nil
	}

	st.Activity = append(recent, now)

	if len(st.Activity) >= g.cfg.SpamThreshold {
		st.Warnings++
		if st.Warnings <= g.cfg.WarnLimit {
			if err := g.store.Save(ctx, userID, st); err != nil {
				return Verdict{}, err
			}
			return Verdict{
				Allowed:  true,
				Response: fmt.Sprintf("⚠️ Warning %d/%d: Stop spamming!", st.Warnings, g.cfg.WarnLimit),
			}, nil
		}

		idx := st.Warnings - g.cfg.WarnLimit - 1
		if idx >= len(g.cfg.Suspensions) {
			idx = len(g.cfg.Suspensions) - 1
		}
		until := now.Add(g.cfg.Suspensions[idx])
		st.SuspendedUntil = &until
		if err := g.store.Save(ctx, userID, st); err != nil {
			return Verdict{}, err
		}
		return Verdict{Response: fmt.Sprintf("🚫 You are temporarily blocked for %s.", g.cfg.Suspensions[idx])}, nil
	}

	if err := g.store.Save(ctx, userID, st); err != nil {
		return Verdict{}, err
	}
	return Verdict{Allowed: true}, nil
}
