// Package view renders a session.View for a terminal. Pure projection: no
// state, no side effects, just formatting.
package view

import (
	"fmt"
	"strings"

	"github.com/wordchain/shiritori-client/internal/protocol"
	"github.com/wordchain/shiritori-client/internal/session"
)

// Render draws the whole room as a block of text.
func Render(v session.View) string {
	var b strings.Builder

	if !v.Joined {
		b.WriteString("Shiritori — not joined yet\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Shiritori — room %s (you are %s)\n", v.Local.RoomID, v.Local.Seat)
	for _, seat := range []protocol.Seat{protocol.SeatPlayer1, protocol.SeatPlayer2} {
		b.WriteString(seatLine(v, seat))
	}

	switch {
	case v.Winner != "":
		fmt.Fprintf(&b, "winner: %s\n", displayName(v.Room, v.Winner))
	case v.Room.Started:
		fmt.Fprintf(&b, "turn: %s  time left: %ds\n", displayName(v.Room, v.Room.Turn), v.Remaining)
		if len(v.Room.WordHistory) > 0 {
			fmt.Fprintf(&b, "words: %s\n", strings.Join(v.Room.WordHistory, " → "))
		}
	default:
		b.WriteString("waiting to start (/start when both seats are filled)\n")
	}

	return b.String()
}

func seatLine(v session.View, seat protocol.Seat) string {
	status := "waiting"
	if v.Room.Players[seat] {
		status = "joined"
	}
	marker := " "
	if v.Room.Started && v.Room.Turn == seat {
		marker = "*"
	}
	return fmt.Sprintf("%s %-8s %-12s score %d  [%s]\n",
		marker, seat, displayName(v.Room, seat), v.Room.Scores[seat], status)
}

func displayName(room protocol.RoomSnapshot, seat protocol.Seat) string {
	if name := room.Names[seat]; name != "" {
		return name
	}
	return string(seat)
}
