// Package stubserver is a development implementation of the wire contract:
// hub + room actors, a word judge, and a websocket handler. It exists so the
// client can be run and integration-tested without the production server.
package stubserver

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/wordchain/shiritori-client/internal/protocol"
)

var ErrNotStarted = errors.New("game not started")
var ErrAlreadyStarted = errors.New("game already started")
var ErrWrongTurn = errors.New("not your turn")
var ErrRoomNotReady = errors.New("both seats must be filled")

// MinWordLen is the shortest acceptable word.
const MinWordLen = 4

// RoomState is the authoritative server-side room. The client only ever
// sees its Snapshot projection.
type RoomState struct {
	Players     map[protocol.Seat]bool
	Names       map[protocol.Seat]string
	Scores      map[protocol.Seat]int
	Started     bool
	Turn        protocol.Seat
	WordHistory []string
}

func NewRoomState() RoomState {
	return RoomState{
		Players: map[protocol.Seat]bool{},
		Names:   map[protocol.Seat]string{},
		Scores:  map[protocol.Seat]int{},
	}
}

func cloneState(s RoomState) RoomState {
	next := s
	next.Players = maps.Clone(s.Players)
	next.Names = maps.Clone(s.Names)
	next.Scores = maps.Clone(s.Scores)
	next.WordHistory = slices.Clone(s.WordHistory)
	return next
}

// Snapshot projects the state into the wire shape.
func (s RoomState) Snapshot() protocol.RoomSnapshot {
	c := cloneState(s)
	if c.WordHistory == nil {
		c.WordHistory = []string{}
	}
	return protocol.RoomSnapshot{
		Players:     c.Players,
		Names:       c.Names,
		Scores:      c.Scores,
		Started:     c.Started,
		Turn:        c.Turn,
		WordHistory: c.WordHistory,
	}
}

// ApplySubmit judges a submission and returns the next state. An invalid
// word costs a point; a valid one scores a point and joins the chain. The
// empty word (a timeout forfeit) is always invalid. Either way the turn
// passes, so a stalled player cannot hold the game.
func ApplySubmit(s RoomState, seat protocol.Seat, word string) (RoomState, error) {
	if !s.Started {
		return s, ErrNotStarted
	}
	if s.Turn != seat {
		return s, ErrWrongTurn
	}

	next := cloneState(s)
	word = strings.ToLower(strings.TrimSpace(word))
	if validWord(s, word) {
		next.Scores[seat]++
		next.WordHistory = append(next.WordHistory, word)
	} else {
		next.Scores[seat]--
	}
	next.Turn = seat.Other()
	return next, nil
}

func validWord(s RoomState, word string) bool {
	if utf8.RuneCountInString(word) < MinWordLen {
		return false
	}
	if slices.Contains(s.WordHistory, word) {
		return false
	}
	if len(s.WordHistory) > 0 {
		prev := s.WordHistory[len(s.WordHistory)-1]
		if lastRune(prev) != firstRune(word) {
			return false
		}
	}
	return true
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

// ApplyStart begins the match with player1 to move.
func ApplyStart(s RoomState) (RoomState, error) {
	if s.Started {
		return s, ErrAlreadyStarted
	}
	if !s.Players[protocol.SeatPlayer1] || !s.Players[protocol.SeatPlayer2] {
		return s, ErrRoomNotReady
	}
	next := cloneState(s)
	next.Started = true
	next.Turn = protocol.SeatPlayer1
	return next, nil
}

// ApplyEnd finishes the match and picks the winner by score, player1 on a
// tie. Scores and history survive until reset.
func ApplyEnd(s RoomState) (RoomState, protocol.Seat, error) {
	if !s.Started {
		return s, "", ErrNotStarted
	}
	next := cloneState(s)
	next.Started = false
	next.Turn = ""

	winner := protocol.SeatPlayer1
	if next.Scores[protocol.SeatPlayer2] > next.Scores[protocol.SeatPlayer1] {
		winner = protocol.SeatPlayer2
	}
	return next, winner, nil
}

// ApplyReset clears scores, history and progress but keeps the seats.
func ApplyReset(s RoomState) RoomState {
	next := cloneState(s)
	next.Started = false
	next.Turn = ""
	next.WordHistory = nil
	for seat := range next.Scores {
		next.Scores[seat] = 0
	}
	return next
}
