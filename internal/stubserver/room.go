package stubserver

import (
	"context"

	"github.com/wordchain/shiritori-client/internal/protocol"
)

// Outbound is a server push destined for one connection's write pump.
type Outbound struct {
	Event  string // protocol.EventUpdate or protocol.EventGameEnded
	Room   protocol.RoomSnapshot
	Winner protocol.Seat // set on game_ended only
}

type RoomMsg interface{ isRoomMsg() }

// Join claims a seat. Reply always receives exactly one ack.
type Join struct {
	Seat   protocol.Seat
	Name   string
	Outbox chan Outbound
	Reply  chan protocol.JoinAck
}

// Leave frees a seat when its connection goes away.
type Leave struct{ Seat protocol.Seat }

type Submit struct {
	Seat protocol.Seat
	Word string
}

type Start struct{}
type End struct{}
type Reset struct{}

// GetState is test-only: reflect internal state without data races.
type GetState struct{ Reply chan RoomState }

type Shutdown struct{}

func (Join) isRoomMsg()     {}
func (Leave) isRoomMsg()    {}
func (Submit) isRoomMsg()   {}
func (Start) isRoomMsg()    {}
func (End) isRoomMsg()      {}
func (Reset) isRoomMsg()    {}
func (GetState) isRoomMsg() {}
func (Shutdown) isRoomMsg() {}

// Room is one two-seat game, run as a single goroutine owning its state.
type Room struct {
	id      string
	inbox   chan RoomMsg
	state   RoomState
	clients map[protocol.Seat]chan Outbound
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRoom(parent context.Context, id string) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		id:      id,
		inbox:   make(chan RoomMsg, 64),
		state:   NewRoomState(),
		clients: make(map[protocol.Seat]chan Outbound),
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

func (r *Room) Inbox() chan<- RoomMsg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.join(msg)

			case Leave:
				if ch, ok := r.clients[msg.Seat]; ok {
					close(ch)
					delete(r.clients, msg.Seat)
				}
				r.state.Players[msg.Seat] = false
				r.broadcastUpdate()

			case Submit:
				next, err := ApplySubmit(r.state, msg.Seat, msg.Word)
				if err != nil {
					// No reply channel for fire-and-forget intents; the
					// client just never sees an update.
					break
				}
				r.state = next
				r.broadcastUpdate()

			case Start:
				next, err := ApplyStart(r.state)
				if err != nil {
					break
				}
				r.state = next
				r.broadcastUpdate()

			case End:
				next, winner, err := ApplyEnd(r.state)
				if err != nil {
					break
				}
				r.state = next
				r.broadcast(Outbound{Event: protocol.EventGameEnded, Room: r.state.Snapshot(), Winner: winner})

			case Reset:
				r.state = ApplyReset(r.state)
				r.broadcastUpdate()

			case GetState:
				msg.Reply <- cloneState(r.state)

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) join(msg Join) {
	if r.state.Players[msg.Seat] {
		msg.Reply <- protocol.JoinAck{OK: false, Message: "seat " + string(msg.Seat) + " is already taken"}
		return
	}
	if old, ok := r.clients[msg.Seat]; ok {
		close(old)
	}
	r.clients[msg.Seat] = msg.Outbox
	r.state.Players[msg.Seat] = true
	r.state.Names[msg.Seat] = msg.Name
	if _, ok := r.state.Scores[msg.Seat]; !ok {
		r.state.Scores[msg.Seat] = 0
	}
	msg.Reply <- protocol.JoinAck{OK: true, RoomID: r.id}
	r.broadcastUpdate()
}

func (r *Room) shutdown() {
	for seat, ch := range r.clients {
		close(ch)
		delete(r.clients, seat)
	}
	r.cancel()
}

func (r *Room) broadcastUpdate() {
	r.broadcast(Outbound{Event: protocol.EventUpdate, Room: r.state.Snapshot()})
}

func (r *Room) broadcast(out Outbound) {
	for seat, ch := range r.clients {
		select {
		case ch <- out:
		default:
			// Write pump is stuck; drop the connection.
			close(ch)
			delete(r.clients, seat)
		}
	}
}
