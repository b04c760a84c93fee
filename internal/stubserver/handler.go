package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wordchain/shiritori-client/internal/protocol"
)

// SetupRoutes builds the router with the hub injected.
func SetupRoutes(h *Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/ws", WSHandler(h, log))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// WSHandler accepts one connection per player. Frames arrive in connection
// order; join_game is acked, everything else is fire-and-forget into the
// room's inbox.
func WSHandler(h *Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // dev-only server, any origin may connect
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan Outbound, 8)

		var joinedSeat protocol.Seat
		var joinedRoom string
		defer func() {
			if joinedRoom != "" {
				h.Inbox() <- LeaveSeat{RoomID: joinedRoom, Seat: joinedSeat}
			}
		}()

		// Write pump
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for ev := range out {
				writeFrame(writeCtx, conn, outboundFrame(ev))
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var frame protocol.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Warn("bad frame", zap.Error(err))
				continue
			}

			switch frame.Event {
			case protocol.EventJoinGame:
				var p protocol.JoinGamePayload
				if err := json.Unmarshal(frame.Payload, &p); err != nil || !p.Player.Valid() {
					writeAck(r.Context(), conn, frame.Ack, protocol.JoinAck{OK: false, Message: "bad join payload"})
					continue
				}
				if joinedRoom != "" {
					writeAck(r.Context(), conn, frame.Ack, protocol.JoinAck{OK: false, Message: "already joined"})
					continue
				}
				reply := make(chan protocol.JoinAck, 1)
				h.Inbox() <- JoinSeat{Seat: p.Player, Name: p.Name, Outbox: out, Reply: reply}
				ack := <-reply
				if ack.OK {
					joinedSeat = p.Player
					joinedRoom = ack.RoomID
				}
				writeAck(r.Context(), conn, frame.Ack, ack)

			case protocol.EventSubmitWord:
				var p protocol.SubmitWordPayload
				if err := json.Unmarshal(frame.Payload, &p); err != nil {
					continue
				}
				if room := getRoom(h, p.RoomID); room != nil {
					room.Inbox() <- Submit{Seat: p.Player, Word: p.Word}
				}

			case protocol.EventStartGame, protocol.EventEndGame, protocol.EventResetGame:
				var p protocol.RoomRefPayload
				if err := json.Unmarshal(frame.Payload, &p); err != nil {
					continue
				}
				room := getRoom(h, p.RoomID)
				if room == nil {
					continue
				}
				switch frame.Event {
				case protocol.EventStartGame:
					room.Inbox() <- Start{}
				case protocol.EventEndGame:
					room.Inbox() <- End{}
				case protocol.EventResetGame:
					room.Inbox() <- Reset{}
				}

			default:
				log.Debug("unknown event", zap.String("event", frame.Event))
			}
		}
	}
}

func getRoom(h *Hub, id string) *Room {
	reply := make(chan *Room, 1)
	h.Inbox() <- GetRoom{ID: id, Reply: reply}
	return <-reply
}

func outboundFrame(ev Outbound) protocol.Frame {
	var payload any
	switch ev.Event {
	case protocol.EventGameEnded:
		payload = protocol.GameEndedPayload{Room: ev.Room, Winner: ev.Winner}
	default:
		payload = ev.Room
	}
	raw, _ := json.Marshal(payload)
	return protocol.Frame{Event: ev.Event, Payload: raw}
}

func writeAck(ctx context.Context, conn *websocket.Conn, ackID int, ack protocol.JoinAck) {
	raw, _ := json.Marshal(ack)
	writeFrame(ctx, conn, protocol.Frame{Event: protocol.EventAck, Ack: ackID, Payload: raw})
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame protocol.Frame) {
	data, _ := json.Marshal(frame)
	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(writeCtx, websocket.MessageText, data)
}
