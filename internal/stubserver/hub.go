package stubserver

import (
	"context"

	"github.com/google/uuid"

	"github.com/wordchain/shiritori-client/internal/protocol"
)

type HubMsg interface{ isHubMsg() }

// JoinSeat pairs a joining player into the first room where the requested
// seat is free, creating a room when none fits. The room acks on Reply.
type JoinSeat struct {
	Seat   protocol.Seat
	Name   string
	Outbox chan Outbound
	Reply  chan protocol.JoinAck
}

type GetRoom struct {
	ID    string
	Reply chan *Room
}

// LeaveSeat releases a seat when its connection closes.
type LeaveSeat struct {
	RoomID string
	Seat   protocol.Seat
}

type ShutdownHub struct{}

func (JoinSeat) isHubMsg()    {}
func (GetRoom) isHubMsg()     {}
func (LeaveSeat) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the room set and seat assignment. Rooms keep the authoritative
// game state; the hub only tracks which seats it has handed out.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*Room
	seats  map[string]map[protocol.Seat]bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*Room),
		seats:  make(map[string]map[protocol.Seat]bool),
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case JoinSeat:
				room := h.placeSeat(msg.Seat)
				h.seats[room.ID()][msg.Seat] = true
				room.Inbox() <- Join{Seat: msg.Seat, Name: msg.Name, Outbox: msg.Outbox, Reply: msg.Reply}

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // May be nil

			case LeaveSeat:
				room := h.rooms[msg.RoomID]
				if room == nil {
					break
				}
				delete(h.seats[msg.RoomID], msg.Seat)
				room.Inbox() <- Leave{Seat: msg.Seat}

			case ShutdownHub:
				for id, room := range h.rooms {
					room.Inbox() <- Shutdown{}
					delete(h.rooms, id)
					delete(h.seats, id)
				}
				h.cancel()
			}
		}
	}
}

// placeSeat prefers a half-full room waiting on this seat, then any room
// with the seat free, then a fresh room.
func (h *Hub) placeSeat(seat protocol.Seat) *Room {
	for id, taken := range h.seats {
		if !taken[seat] && taken[seat.Other()] {
			return h.rooms[id]
		}
	}
	for id, taken := range h.seats {
		if !taken[seat] {
			return h.rooms[id]
		}
	}
	id := uuid.NewString()
	room := NewRoom(h.ctx, id)
	h.rooms[id] = room
	h.seats[id] = make(map[protocol.Seat]bool)
	return room
}
