package flood

import (
	"context"
	"strings"
	"testing"
	"time"
)

// memoryStore is the in-memory Store used by tests.
type memoryStore struct {
	states map[int64]*State
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: map[int64]*State{}}
}

func (m *memoryStore) Load(_ context.Context, userID int64) (*State, error) {
	if st, ok := m.states[userID]; ok {
		cp := *st
		cp.Activity = append([]time.Time(nil), st.Activity...)
		return &cp, nil
	}
	return &State{}, nil
}

func (m *memoryStore) Save(_ context.Context, userID int64, st *State) error {
	m.states[userID] = st
	return nil
}

// testGate returns a gate with a controllable clock and a cooldown short
// enough that the spam threshold is reachable.
func testGate() (*Gate, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	g := NewGate(Config{
		Cooldown:      time.Second,
		SpamWindow:    10 * time.Second,
		SpamThreshold: 5,
		WarnLimit:     3,
		Suspensions:   []time.Duration{30 * time.Minute, time.Hour, 24 * time.Hour},
	}, newMemoryStore())
	g.now = clock.Now
	return g, clock
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

const userID = int64(7)

func TestCooldown(t *testing.T) {
	g, clock := testGate()
	ctx := context.Background()

	v, err := g.Check(ctx, userID)
	if err != nil || !v.Allowed {
		t.Fatalf("first command must pass: %+v, %v", v, err)
	}

	clock.Advance(200 * time.Millisecond)
	v, err = g.Check(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Allowed || !strings.Contains(v.Response, "wait") {
		t.Fatalf("command inside cooldown must be rejected with feedback: %+v", v)
	}

	clock.Advance(time.Second)
	if v, _ = g.Check(ctx, userID); !v.Allowed {
		t.Fatalf("command after cooldown must pass: %+v", v)
	}
}

// burst issues n commands spaced just past the cooldown and returns the
// verdicts.
func burst(t *testing.T, g *Gate, clock *fakeClock, n int) []Verdict {
	t.Helper()
	out := make([]Verdict, 0, n)
	for i := 0; i < n; i++ {
		clock.Advance(time.Second + time.Millisecond)
		v, err := g.Check(context.Background(), userID)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, v)
	}
	return out
}

func TestSpamEscalation(t *testing.T) {
	g, clock := testGate()

	// Commands 1-4 pass quietly; the 5th hits the threshold and warns.
	vs := burst(t, g, clock, 5)
	for i, v := range vs[:4] {
		if !v.Allowed || v.Response != "" {
			t.Fatalf("command %d should pass quietly: %+v", i+1, v)
		}
	}
	if !vs[4].Allowed || !strings.Contains(vs[4].Response, "Warning 1/3") {
		t.Fatalf("expected first warning on threshold: %+v", vs[4])
	}

	// Two more threshold hits exhaust the warning track.
	if v := burst(t, g, clock, 1)[0]; !strings.Contains(v.Response, "Warning 2/3") {
		t.Fatalf("expected second warning: %+v", v)
	}
	if v := burst(t, g, clock, 1)[0]; !strings.Contains(v.Response, "Warning 3/3") {
		t.Fatalf("expected third warning: %+v", v)
	}

	// The next offense suspends for the first configured duration.
	v := burst(t, g, clock, 1)[0]
	if v.Allowed || !strings.Contains(v.Response, "blocked for 30m") {
		t.Fatalf("expected 30m suspension: %+v", v)
	}

	// Suspended user is rejected with remaining-time feedback until expiry.
	clock.Advance(10 * time.Minute)
	v, _ = g.Check(context.Background(), userID)
	if v.Allowed || !strings.Contains(v.Response, "paused") {
		t.Fatalf("suspended user must be rejected: %+v", v)
	}

	// After the suspension elapses the user is clean again.
	clock.Advance(25 * time.Minute)
	v, _ = g.Check(context.Background(), userID)
	if !v.Allowed || v.Response != "" {
		t.Fatalf("expired suspension must reset the user: %+v", v)
	}
}

// Repeat offenses after a served suspension escalate through the configured
// durations and then reuse the last one; there is no permanent ban.
func TestSuspensionEscalationOrder(t *testing.T) {
	g, clock := testGate()

	// offend bursts past the spam threshold until the gate suspends,
	// then serves the suspension out.
	offend := func(wantBlocked string, sitOut time.Duration) {
		t.Helper()
		for i := 0; i < 8; i++ {
			v := burst(t, g, clock, 1)[0]
			if !v.Allowed {
				if !strings.Contains(v.Response, wantBlocked) {
					t.Fatalf("expected %q, got %+v", wantBlocked, v)
				}
				clock.Advance(sitOut + time.Minute)
				return
			}
		}
		t.Fatalf("never suspended, expected %q", wantBlocked)
	}

	offend("blocked for 30m", 30*time.Minute) // warnings 1-3, then first rung
	offend("blocked for 1h", time.Hour)       // second rung, no fresh warnings
	offend("blocked for 24h", 24*time.Hour)   // third rung
	offend("blocked for 24h", 24*time.Hour)   // ladder exhausted, last rung repeats
}
