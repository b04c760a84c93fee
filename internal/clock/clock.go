// Package clock holds the per-turn countdown as a pure state machine.
// It owns no timer; the session loop feeds it one Tick per real-time second
// and re-observes the (turn, started) pair on every snapshot. Keeping it
// tick-driven means tests never sleep.
package clock

import "github.com/wordchain/shiritori-client/internal/protocol"

// TurnSeconds is the fixed per-turn time limit.
const TurnSeconds = 25

// TurnClock counts down for at most one seat at a time. The zero value is
// disarmed.
type TurnClock struct {
	armed     bool
	seat      protocol.Seat
	remaining int
}

// Armed reports whether a countdown is running.
func (c *TurnClock) Armed() bool { return c.armed }

// Seat returns the seat the countdown is running for, or "" when disarmed.
func (c *TurnClock) Seat() protocol.Seat {
	if !c.armed {
		return ""
	}
	return c.seat
}

// Remaining returns the seconds left on the current countdown, or
// TurnSeconds when disarmed (matches what an idle timer displays).
func (c *TurnClock) Remaining() int {
	if !c.armed {
		return TurnSeconds
	}
	return c.remaining
}

// Observe reconciles the clock with a snapshot's (turn, started) pair.
// A disarming pair (not started, or no turn) tears the countdown down.
// A pair naming a different seat than the one armed tears down and arms
// fresh at TurnSeconds. The same pair twice is a no-op, so duplicate
// snapshots never reset a running countdown.
func (c *TurnClock) Observe(turn protocol.Seat, started bool) {
	if !started || turn == "" {
		c.Disarm()
		return
	}
	if c.armed && c.seat == turn {
		return
	}
	// Teardown-then-setup: the old identity is gone before the new one
	// starts counting, so two countdowns never coexist.
	c.Disarm()
	c.armed = true
	c.seat = turn
	c.remaining = TurnSeconds
}

// Disarm stops the countdown unconditionally. Safe to call when disarmed.
func (c *TurnClock) Disarm() {
	c.armed = false
	c.seat = ""
	c.remaining = 0
}

// Tick advances the countdown by one second. When the countdown hits zero
// it reports expired=true with the seat that ran out, and immediately
// rearms itself at TurnSeconds for the same seat: the client does not wait
// for the server to confirm the forfeit before counting again. Ticks while
// disarmed do nothing.
func (c *TurnClock) Tick() (expired bool, seat protocol.Seat) {
	if !c.armed {
		return false, ""
	}
	c.remaining--
	if c.remaining > 0 {
		return false, ""
	}
	seat = c.seat
	c.remaining = TurnSeconds
	return true, seat
}
