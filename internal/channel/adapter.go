// Package channel owns the client's single websocket connection to the
// authoritative game server. Inbound events surface as typed messages on
// Events(); outbound intents are fire-and-forget writes, except JoinGame
// which waits for the server's ack.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/wordchain/shiritori-client/internal/protocol"
)

// ErrClosed is returned when an intent is sent after the connection is gone.
var ErrClosed = errors.New("channel: connection closed")

const writeTimeout = 3 * time.Second

// Inbound is a server-pushed event, already decoded.
type Inbound interface{ isInbound() }

// Update carries a full room snapshot; the previous one is discarded.
type Update struct {
	Room protocol.RoomSnapshot
}

func (Update) isInbound() {}

// GameEnded is the terminal signal: final snapshot plus the winning seat.
type GameEnded struct {
	Room   protocol.RoomSnapshot
	Winner protocol.Seat
}

func (GameEnded) isInbound() {}

// Adapter is the realtime channel adapter. Construct with Dial, consume
// Events() from a single goroutine, Close when done.
type Adapter struct {
	conn   *websocket.Conn
	log    *zap.Logger
	events chan Inbound
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	acks    map[int]chan protocol.JoinAck
	nextAck int
}

// Dial opens the connection and starts the read loop. The adapter lives
// until Close or until the parent context is cancelled.
func Dial(parent context.Context, url string, log *zap.Logger) (*Adapter, error) {
	dialCtx, dialCancel := context.WithTimeout(parent, 10*time.Second)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("channel: dial %s: %w", url, err)
	}

	ctx, cancel := context.WithCancel(parent)
	a := &Adapter{
		conn:   conn,
		log:    log,
		events: make(chan Inbound, 8),
		ctx:    ctx,
		cancel: cancel,
		acks:   make(map[int]chan protocol.JoinAck),
	}
	go a.readLoop()
	return a, nil
}

// Events delivers inbound events in connection order. The channel is closed
// when the connection dies.
func (a *Adapter) Events() <-chan Inbound { return a.events }

// Close tears the connection down and releases the read loop.
func (a *Adapter) Close() error {
	a.cancel()
	return a.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (a *Adapter) readLoop() {
	defer func() {
		a.cancel()
		a.failPendingAcks()
		close(a.events)
	}()

	for {
		_, data, err := a.conn.Read(a.ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if a.ctx.Err() == nil {
					a.log.Warn("read failed", zap.Error(err))
				}
			}
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			a.log.Warn("bad frame", zap.Error(err))
			continue
		}
		a.dispatch(frame)
	}
}

func (a *Adapter) dispatch(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventAck:
		var ack protocol.JoinAck
		if err := json.Unmarshal(frame.Payload, &ack); err != nil {
			a.log.Warn("bad ack payload", zap.Error(err))
			return
		}
		a.resolveAck(frame.Ack, ack)

	case protocol.EventUpdate:
		var room protocol.RoomSnapshot
		if err := json.Unmarshal(frame.Payload, &room); err != nil {
			a.log.Warn("bad update payload", zap.Error(err))
			return
		}
		a.deliver(Update{Room: room})

	case protocol.EventGameEnded:
		var p protocol.GameEndedPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			a.log.Warn("bad game_ended payload", zap.Error(err))
			return
		}
		a.deliver(GameEnded{Room: p.Room, Winner: p.Winner})

	default:
		a.log.Debug("unknown event", zap.String("event", frame.Event))
	}
}

func (a *Adapter) deliver(ev Inbound) {
	select {
	case a.events <- ev:
	case <-a.ctx.Done():
	}
}

// JoinGame is the only request/response intent: the caller suspends until
// the server acks or ctx expires. Name validation happens in the session,
// not here.
func (a *Adapter) JoinGame(ctx context.Context, seat protocol.Seat, name string) (protocol.JoinAck, error) {
	a.mu.Lock()
	a.nextAck++
	id := a.nextAck
	ch := make(chan protocol.JoinAck, 1)
	a.acks[id] = ch
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.acks, id)
		a.mu.Unlock()
	}()

	err := a.emit(ctx, protocol.EventJoinGame, id, protocol.JoinGamePayload{Player: seat, Name: name})
	if err != nil {
		return protocol.JoinAck{}, err
	}

	select {
	case ack, ok := <-ch:
		if !ok {
			return protocol.JoinAck{}, ErrClosed
		}
		return ack, nil
	case <-ctx.Done():
		return protocol.JoinAck{}, ctx.Err()
	}
}

// SubmitWord sends a submission intent. An empty word is legal here: it is
// how a timeout forfeit reaches the judge.
func (a *Adapter) SubmitWord(ctx context.Context, roomID string, seat protocol.Seat, word string) error {
	return a.emit(ctx, protocol.EventSubmitWord, 0, protocol.SubmitWordPayload{RoomID: roomID, Player: seat, Word: word})
}

func (a *Adapter) StartGame(ctx context.Context, roomID string) error {
	return a.emit(ctx, protocol.EventStartGame, 0, protocol.RoomRefPayload{RoomID: roomID})
}

func (a *Adapter) EndGame(ctx context.Context, roomID string) error {
	return a.emit(ctx, protocol.EventEndGame, 0, protocol.RoomRefPayload{RoomID: roomID})
}

func (a *Adapter) ResetGame(ctx context.Context, roomID string) error {
	return a.emit(ctx, protocol.EventResetGame, 0, protocol.RoomRefPayload{RoomID: roomID})
}

func (a *Adapter) emit(ctx context.Context, event string, ackID int, payload any) error {
	if a.ctx.Err() != nil {
		return ErrClosed
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: marshal %s: %w", event, err)
	}
	data, err := json.Marshal(protocol.Frame{Event: event, Ack: ackID, Payload: raw})
	if err != nil {
		return fmt.Errorf("channel: marshal frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := a.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("channel: write %s: %w", event, err)
	}
	return nil
}

func (a *Adapter) resolveAck(id int, ack protocol.JoinAck) {
	a.mu.Lock()
	ch, ok := a.acks[id]
	delete(a.acks, id)
	a.mu.Unlock()
	if !ok {
		a.log.Debug("ack with no waiter", zap.Int("id", id))
		return
	}
	ch <- ack
}

func (a *Adapter) failPendingAcks() {
	a.mu.Lock()
	for id, ch := range a.acks {
		close(ch)
		delete(a.acks, id)
	}
	a.mu.Unlock()
}
