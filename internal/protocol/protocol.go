package protocol

import "encoding/json"

// Seat is one of the two fixed player slots in a room.
type Seat string

const (
	SeatPlayer1 Seat = "player1"
	SeatPlayer2 Seat = "player2"
)

// Valid reports whether s names a real seat.
func (s Seat) Valid() bool {
	return s == SeatPlayer1 || s == SeatPlayer2
}

// Other returns the opposing seat.
func (s Seat) Other() Seat {
	if s == SeatPlayer1 {
		return SeatPlayer2
	}
	return SeatPlayer1
}

// RoomSnapshot is the complete, server-authoritative description of a room.
// The server always sends the whole thing; clients replace their copy
// wholesale and never merge fields.
type RoomSnapshot struct {
	Players     map[Seat]bool   `json:"players"`
	Names       map[Seat]string `json:"names"`
	Scores      map[Seat]int    `json:"scores"`
	Started     bool            `json:"started"`
	Turn        Seat            `json:"turn,omitempty"`
	WordHistory []string        `json:"wordHistory"`
}

// Event names on the wire.
const (
	// client -> server
	EventJoinGame   = "join_game"
	EventSubmitWord = "submit_word"
	EventStartGame  = "start_game"
	EventEndGame    = "end_game"
	EventResetGame  = "reset_game"

	// server -> client
	EventAck       = "ack"
	EventUpdate    = "update"
	EventGameEnded = "game_ended"
)

// Frame is the envelope for every message in either direction. Ack is set
// only on join_game and on the server's matching ack reply.
type Frame struct {
	Event   string          `json:"event"`
	Ack     int             `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinGamePayload struct {
	Player Seat   `json:"player"`
	Name   string `json:"name"`
}

// JoinAck is the reply to join_game, the only request/response pair in the
// protocol. On ok=false, Message carries the server's rejection verbatim.
type JoinAck struct {
	OK      bool   `json:"ok"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
}

type SubmitWordPayload struct {
	RoomID string `json:"roomId"`
	Player Seat   `json:"player"`
	Word   string `json:"word"`
}

// RoomRefPayload is the shared shape of start_game, end_game and reset_game.
type RoomRefPayload struct {
	RoomID string `json:"roomId"`
}

type GameEndedPayload struct {
	Room   RoomSnapshot `json:"room"`
	Winner Seat         `json:"winner"`
}
