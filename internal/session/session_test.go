package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wordchain/shiritori-client/internal/channel"
	"github.com/wordchain/shiritori-client/internal/clock"
	"github.com/wordchain/shiritori-client/internal/protocol"
)

type call struct {
	method string
	roomID string
	seat   protocol.Seat
	name   string
	word   string
}

// fakeTransport records outbound intents so tests can assert exactly what
// reached the wire.
type fakeTransport struct {
	mu    sync.Mutex
	calls []call
	ack   protocol.JoinAck
}

func (f *fakeTransport) JoinGame(_ context.Context, seat protocol.Seat, name string) (protocol.JoinAck, error) {
	f.record(call{method: "join_game", seat: seat, name: name})
	return f.ack, nil
}

func (f *fakeTransport) SubmitWord(_ context.Context, roomID string, seat protocol.Seat, word string) error {
	f.record(call{method: "submit_word", roomID: roomID, seat: seat, word: word})
	return nil
}

func (f *fakeTransport) StartGame(_ context.Context, roomID string) error {
	f.record(call{method: "start_game", roomID: roomID})
	return nil
}

func (f *fakeTransport) EndGame(_ context.Context, roomID string) error {
	f.record(call{method: "end_game", roomID: roomID})
	return nil
}

func (f *fakeTransport) ResetGame(_ context.Context, roomID string) error {
	f.record(call{method: "reset_game", roomID: roomID})
	return nil
}

func (f *fakeTransport) record(c call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *fakeTransport) snapshotCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeTransport) callsFor(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func newTestSession(t *testing.T) (*Session, *fakeTransport, chan channel.Inbound, *clockwork.FakeClock) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	fake := &fakeTransport{ack: protocol.JoinAck{OK: true, RoomID: "R1"}}
	events := make(chan channel.Inbound, 8)
	fc := clockwork.NewFakeClock()

	s := New(ctx, fake, events, fc, zap.NewNop())
	t.Cleanup(s.Shutdown)

	// Wait for the loop's ticker before advancing the fake clock.
	blockCtx, blockCancel := context.WithTimeout(ctx, time.Second)
	defer blockCancel()
	require.NoError(t, fc.BlockUntilContext(blockCtx, 1))

	return s, fake, events, fc
}

func activeRoom(turn protocol.Seat) protocol.RoomSnapshot {
	return protocol.RoomSnapshot{
		Players:     map[protocol.Seat]bool{protocol.SeatPlayer1: true, protocol.SeatPlayer2: true},
		Names:       map[protocol.Seat]string{protocol.SeatPlayer1: "Alice", protocol.SeatPlayer2: "Bob"},
		Scores:      map[protocol.Seat]int{protocol.SeatPlayer1: 2, protocol.SeatPlayer2: -1},
		Started:     true,
		Turn:        turn,
		WordHistory: []string{"apple", "elephant"},
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 2*time.Millisecond, msg)
}

// tickOnce advances the fake clock one second and waits for the loop to
// absorb the tick, keeping the countdown deterministic.
func tickOnce(t *testing.T, s *Session, fc *clockwork.FakeClock, wantRemaining int) {
	t.Helper()
	fc.Advance(time.Second)
	eventually(t, func() bool { return s.CurrentView().Remaining == wantRemaining },
		"countdown did not reach expected value")
}

func TestJoin_EmptyNameNeverReachesTransport(t *testing.T) {
	s, fake, _, _ := newTestSession(t)

	err := s.Join(context.Background(), protocol.SeatPlayer1, "   ")
	require.ErrorIs(t, err, ErrEmptyName)
	require.Empty(t, fake.callsFor("join_game"))

	v := s.CurrentView()
	require.False(t, v.Joined)
	require.Empty(t, v.Local.RoomID)
}

func TestJoin_SuccessUnlocksSeatAndRoom(t *testing.T) {
	s, fake, _, _ := newTestSession(t)

	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer2, "Bob"))

	joins := fake.callsFor("join_game")
	require.Len(t, joins, 1)
	require.Equal(t, protocol.SeatPlayer2, joins[0].seat)
	require.Equal(t, "Bob", joins[0].name)

	eventually(t, func() bool { return s.CurrentView().Joined }, "join never landed")
	v := s.CurrentView()
	require.Equal(t, protocol.SeatPlayer2, v.Local.Seat)
	require.Equal(t, "R1", v.Local.RoomID)
}

func TestJoin_RejectionSurfacesMessageVerbatim(t *testing.T) {
	s, fake, _, _ := newTestSession(t)
	fake.ack = protocol.JoinAck{OK: false, Message: "Room full"}

	err := s.Join(context.Background(), protocol.SeatPlayer1, "Alice")
	var rejected *JoinRejectedError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, "Room full", rejected.Message)

	v := s.CurrentView()
	require.False(t, v.Joined)
	require.Empty(t, v.Local.Seat)
	require.Empty(t, v.Local.RoomID)
}

func TestUpdate_ReplacementIsIdempotent(t *testing.T) {
	s, _, events, fc := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))

	room := activeRoom(protocol.SeatPlayer1)
	events <- channel.Update{Room: room}
	eventually(t, func() bool { return s.CurrentView().Room.Started }, "first update never landed")

	tickOnce(t, s, fc, clock.TurnSeconds-1)
	tickOnce(t, s, fc, clock.TurnSeconds-2)

	events <- channel.Update{Room: room}
	// Snapshot replacement is wholesale but the identical (turn, started)
	// pair must not restart the countdown.
	eventually(t, func() bool {
		v := s.CurrentView()
		return len(v.Room.WordHistory) == 2 && v.Remaining == clock.TurnSeconds-2
	}, "duplicate update changed observable state")

	v := s.CurrentView()
	require.Equal(t, room, v.Room)
}

func TestTimeout_EmitsSingleEmptySubmissionAndKeepsCounting(t *testing.T) {
	s, fake, events, fc := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))

	events <- channel.Update{Room: activeRoom(protocol.SeatPlayer1)}
	eventually(t, func() bool { return s.CurrentView().Room.Started }, "update never landed")

	for remaining := clock.TurnSeconds - 1; remaining >= 1; remaining-- {
		tickOnce(t, s, fc, remaining)
	}
	require.Empty(t, fake.callsFor("submit_word"), "no forfeit before the countdown floor")

	// The expiring tick forfeits and optimistically rearms at 25.
	tickOnce(t, s, fc, clock.TurnSeconds)
	eventually(t, func() bool { return len(fake.callsFor("submit_word")) == 1 }, "forfeit never sent")

	subs := fake.callsFor("submit_word")
	require.Len(t, subs, 1)
	require.Equal(t, "", subs[0].word)
	require.Equal(t, protocol.SeatPlayer1, subs[0].seat)
	require.Equal(t, "R1", subs[0].roomID)

	// Still counting for the same stale seat until the server corrects turn.
	tickOnce(t, s, fc, clock.TurnSeconds-1)
	require.Len(t, fake.callsFor("submit_word"), 1)
}

func TestGameEnded_DisarmsClockForGood(t *testing.T) {
	s, fake, events, fc := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))

	events <- channel.Update{Room: activeRoom(protocol.SeatPlayer1)}
	eventually(t, func() bool { return s.CurrentView().Room.Started }, "update never landed")
	tickOnce(t, s, fc, clock.TurnSeconds-1)

	final := activeRoom("")
	final.Started = false
	events <- channel.GameEnded{Room: final, Winner: protocol.SeatPlayer1}
	eventually(t, func() bool { return s.CurrentView().Winner == protocol.SeatPlayer1 }, "game_ended never landed")

	// Run well past a full turn window; a disarmed clock must stay silent.
	for i := 0; i < 2*clock.TurnSeconds; i++ {
		fc.Advance(time.Second)
	}
	_ = s.CurrentView() // drain: round trip through the loop
	require.Empty(t, fake.callsFor("submit_word"), "disarmed clock submitted a forfeit")
}

func TestTurnChange_RearmsForNewSeat(t *testing.T) {
	s, _, events, fc := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))

	events <- channel.Update{Room: activeRoom(protocol.SeatPlayer1)}
	eventually(t, func() bool { return s.CurrentView().Room.Started }, "update never landed")
	tickOnce(t, s, fc, clock.TurnSeconds-1)
	tickOnce(t, s, fc, clock.TurnSeconds-2)

	events <- channel.Update{Room: activeRoom(protocol.SeatPlayer2)}
	eventually(t, func() bool {
		v := s.CurrentView()
		return v.Room.Turn == protocol.SeatPlayer2 && v.Remaining == clock.TurnSeconds
	}, "turn change did not rearm fresh")
}

func TestSubmitWord_TrimsAndSkipsEmpty(t *testing.T) {
	s, fake, _, _ := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))
	eventually(t, func() bool { return s.CurrentView().Joined }, "join never landed")

	s.SubmitWord("   ")
	s.SubmitWord("  elephant ")

	eventually(t, func() bool { return len(fake.callsFor("submit_word")) == 1 }, "submit never sent")
	subs := fake.callsFor("submit_word")
	require.Equal(t, "elephant", subs[0].word)
	require.Equal(t, protocol.SeatPlayer1, subs[0].seat)
	require.Equal(t, "R1", subs[0].roomID)
}

func TestResetGame_ClearsWinnerBeforeServerConfirms(t *testing.T) {
	s, fake, events, _ := newTestSession(t)
	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))

	final := activeRoom("")
	final.Started = false
	events <- channel.GameEnded{Room: final, Winner: protocol.SeatPlayer1}
	eventually(t, func() bool { return s.CurrentView().Winner == protocol.SeatPlayer1 }, "game_ended never landed")

	s.ResetGame()

	eventually(t, func() bool { return s.CurrentView().Winner == "" }, "winner not cleared locally")
	eventually(t, func() bool { return len(fake.callsFor("reset_game")) == 1 }, "reset intent never sent")
	require.Equal(t, "R1", fake.callsFor("reset_game")[0].roomID)
}

func TestIntentsBeforeJoinAreDropped(t *testing.T) {
	s, fake, _, _ := newTestSession(t)

	s.SubmitWord("apple")
	s.StartGame()
	s.EndGame()
	s.ResetGame()

	_ = s.CurrentView() // round trip so the loop has drained the inbox
	require.Empty(t, fake.snapshotCalls())
}

func TestSubscription_DeliversViewsUntilCancelled(t *testing.T) {
	s, _, events, _ := newTestSession(t)

	sub := s.Subscribe()
	first := recvView(t, sub.Views)
	require.False(t, first.Joined)

	require.NoError(t, s.Join(context.Background(), protocol.SeatPlayer1, "Alice"))
	eventually(t, func() bool { return s.CurrentView().Joined }, "join never landed")

	events <- channel.Update{Room: activeRoom(protocol.SeatPlayer1)}
	eventually(t, func() bool {
		for {
			select {
			case v, ok := <-sub.Views:
				if !ok {
					return false
				}
				if v.Room.Started {
					return true
				}
			default:
				return false
			}
		}
	}, "subscriber never saw the update")

	sub.Cancel()
	eventually(t, func() bool {
		select {
		case _, ok := <-sub.Views:
			return !ok
		default:
			return false
		}
	}, "subscription channel not closed after cancel")
}

func recvView(t *testing.T, ch <-chan View) View {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("view channel closed unexpectedly")
		}
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}
