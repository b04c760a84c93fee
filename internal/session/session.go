// Package session is the client core: a single goroutine that owns the
// mirrored room snapshot, the local seat/room identity, the winner flag and
// the turn clock. Inbound channel events, one-second ticks and user intents
// all arrive as messages on one inbox, so every handler runs to completion
// before the next and no field needs a lock.
package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wordchain/shiritori-client/internal/channel"
	"github.com/wordchain/shiritori-client/internal/clock"
	"github.com/wordchain/shiritori-client/internal/protocol"
)

// ErrEmptyName rejects a join before anything reaches the wire.
var ErrEmptyName = errors.New("session: enter your name")

// JoinRejectedError surfaces the server's join rejection verbatim.
type JoinRejectedError struct {
	Message string
}

func (e *JoinRejectedError) Error() string { return e.Message }

// Transport is the outbound half of the channel adapter. Injected so tests
// can run the session against a recording fake.
type Transport interface {
	JoinGame(ctx context.Context, seat protocol.Seat, name string) (protocol.JoinAck, error)
	SubmitWord(ctx context.Context, roomID string, seat protocol.Seat, word string) error
	StartGame(ctx context.Context, roomID string) error
	EndGame(ctx context.Context, roomID string) error
	ResetGame(ctx context.Context, roomID string) error
}

// LocalSession is the identity handed out by the server on join success.
type LocalSession struct {
	Seat    protocol.Seat
	RoomID  string
	Pending string // in-progress word, cleared on submit
}

// View is the pure projection the render layer consumes: snapshot mirror,
// local identity, countdown value and winner flag. It carries no behavior.
type View struct {
	Room      protocol.RoomSnapshot
	Local     LocalSession
	Joined    bool
	Remaining int
	Winner    protocol.Seat
}

type msg interface{ isSessionMsg() }

type joined struct {
	seat   protocol.Seat
	roomID string
}

type submitWord struct{ word string }
type startGame struct{}
type endGame struct{}
type resetGame struct{}

type subscribe struct {
	id  int64
	out chan View
}

type unsubscribe struct{ id int64 }

type getView struct{ reply chan View }

func (joined) isSessionMsg()      {}
func (submitWord) isSessionMsg()  {}
func (startGame) isSessionMsg()   {}
func (endGame) isSessionMsg()     {}
func (resetGame) isSessionMsg()   {}
func (subscribe) isSessionMsg()   {}
func (unsubscribe) isSessionMsg() {}
func (getView) isSessionMsg()     {}

// Session runs the client state machine. Create with New; it winds down when
// the parent context is cancelled.
type Session struct {
	inbox     chan msg
	events    <-chan channel.Inbound
	transport Transport
	clk       clockwork.Clock
	log       *zap.Logger

	room   protocol.RoomSnapshot
	local  LocalSession
	winner protocol.Seat
	turn   clock.TurnClock

	subs    map[int64]chan View
	nextSub atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts the session loop. events is the adapter's inbound stream; clk
// supplies the one-second tick source (clockwork.NewRealClock in production,
// a fake clock in tests).
func New(parent context.Context, transport Transport, events <-chan channel.Inbound, clk clockwork.Clock, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:     make(chan msg, 16),
		events:    events,
		transport: transport,
		clk:       clk,
		log:       log,
		subs:      make(map[int64]chan View),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.loop()
	return s
}

// Shutdown stops the loop, the ticker and every subscription.
func (s *Session) Shutdown() { s.cancel() }

func (s *Session) loop() {
	ticker := s.clk.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case ev, ok := <-s.events:
			if !ok {
				// Connection gone. No reconnect policy exists at this
				// layer; keep serving the last snapshot.
				s.events = nil
				continue
			}
			s.handleInbound(ev)

		case <-ticker.Chan():
			s.tick()

		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

// handleInbound applies a server event. Snapshots replace the mirror
// wholesale: whatever the server says next wins.
func (s *Session) handleInbound(ev channel.Inbound) {
	switch ev := ev.(type) {
	case channel.Update:
		s.room = ev.Room
		s.turn.Observe(s.room.Turn, s.room.Started)
		s.broadcast()

	case channel.GameEnded:
		s.room = ev.Room
		s.winner = ev.Winner
		s.turn.Disarm()
		s.broadcast()

	default:
		s.log.Debug("unhandled inbound event")
	}
}

// tick advances the turn clock one second. On expiry the forfeit is an
// ordinary empty submit_word for the seat that ran out; the clock has
// already rearmed itself and keeps counting until the server's next update
// corrects the turn.
func (s *Session) tick() {
	expired, seat := s.turn.Tick()
	if expired && s.local.RoomID != "" {
		if err := s.transport.SubmitWord(s.ctx, s.local.RoomID, seat, ""); err != nil {
			s.log.Warn("timeout submit failed", zap.Error(err))
		}
	}
	if s.turn.Armed() {
		s.broadcast()
	}
}

func (s *Session) handle(m msg) {
	switch m := m.(type) {
	case joined:
		s.local.Seat = m.seat
		s.local.RoomID = m.roomID
		s.broadcast()

	case submitWord:
		s.local.Pending = ""
		if s.local.RoomID == "" {
			return
		}
		if err := s.transport.SubmitWord(s.ctx, s.local.RoomID, s.local.Seat, m.word); err != nil {
			s.log.Warn("submit failed", zap.Error(err))
		}
		s.broadcast()

	case startGame:
		if s.local.RoomID == "" {
			return
		}
		if err := s.transport.StartGame(s.ctx, s.local.RoomID); err != nil {
			s.log.Warn("start failed", zap.Error(err))
		}

	case endGame:
		if s.local.RoomID == "" {
			return
		}
		if err := s.transport.EndGame(s.ctx, s.local.RoomID); err != nil {
			s.log.Warn("end failed", zap.Error(err))
		}

	case resetGame:
		if s.local.RoomID == "" {
			return
		}
		// Optimistic clear; the server confirms via the next update.
		s.winner = ""
		if err := s.transport.ResetGame(s.ctx, s.local.RoomID); err != nil {
			s.log.Warn("reset failed", zap.Error(err))
		}
		s.broadcast()

	case subscribe:
		s.subs[m.id] = m.out
		m.out <- s.view()

	case unsubscribe:
		if ch, ok := s.subs[m.id]; ok {
			delete(s.subs, m.id)
			close(ch)
		}

	case getView:
		m.reply <- s.view()
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *Session) view() View {
	return View{
		Room:      s.room,
		Local:     s.local,
		Joined:    s.local.Seat != "",
		Remaining: s.turn.Remaining(),
		Winner:    s.winner,
	}
}

func (s *Session) broadcast() {
	v := s.view()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Renderer is lagging; drop the frame, the next one catches up.
		}
	}
}

func (s *Session) send(m msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// Join validates the display name locally, runs the join round trip, and on
// success records the assigned seat and room id. The caller's goroutine
// suspends until the ack; the loop keeps running throughout.
func (s *Session) Join(ctx context.Context, seat protocol.Seat, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	ack, err := s.transport.JoinGame(ctx, seat, name)
	if err != nil {
		return err
	}
	if !ack.OK {
		return &JoinRejectedError{Message: ack.Message}
	}
	s.send(joined{seat: seat, roomID: ack.RoomID})
	return nil
}

// SubmitWord trims and submits the user's word. Empty input is a local
// no-op and never reaches the wire.
func (s *Session) SubmitWord(word string) {
	word = strings.TrimSpace(word)
	if word == "" {
		return
	}
	s.send(submitWord{word: word})
}

// StartGame asks the server to begin the match. The server stays
// authoritative; no local precondition beyond having joined.
func (s *Session) StartGame() { s.send(startGame{}) }

// EndGame asks the server to finish the match and declare a winner.
func (s *Session) EndGame() { s.send(endGame{}) }

// ResetGame clears the local winner flag immediately and asks the server to
// reset the room.
func (s *Session) ResetGame() { s.send(resetGame{}) }

// Subscription is a cancellable listener handle onto the session's view
// stream. Cancel releases it; the Views channel closes afterwards.
type Subscription struct {
	Views  <-chan View
	cancel func()
}

func (sub *Subscription) Cancel() { sub.cancel() }

// Subscribe registers a renderer. The current view is delivered
// immediately, then every state change and armed tick after that.
func (s *Session) Subscribe() *Subscription {
	id := s.nextSub.Add(1)
	out := make(chan View, 8)
	s.send(subscribe{id: id, out: out})
	return &Subscription{
		Views:  out,
		cancel: func() { s.send(unsubscribe{id: id}) },
	}
}

// CurrentView reflects loop state without data races; used by tests and the
// join flow to render the first frame.
func (s *Session) CurrentView() View {
	reply := make(chan View, 1)
	s.send(getView{reply: reply})
	select {
	case v := <-reply:
		return v
	case <-s.ctx.Done():
		return View{}
	}
}
