package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	authproviders "github.com/tmercer/greatwyrm/pkg/auth/providers"
	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/log"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/queue"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/rooms"
	"nhooyr.io/websocket"
)

const (
	// wsWriteTimeout bounds a single outbound frame write
	wsWriteTimeout = 5 * time.Second
	// wsOutBufferSize is the per-connection outbound channel capacity
	wsOutBufferSize = 16
)

type wsHandlerOptions struct {
	AuthProvider   authproviders.AuthProvider
	Repository     repositories.Repository
	RoomManager    *rooms.RoomManager
	RollEventQueue queue.Queue
	OriginPatterns []string
}

// handleWS subscribes the connection to its campaign's room and accepts
// roll submissions. Room broadcasts and direct replies share one writer
// goroutine; the reader loop runs in the handler itself.
func handleWS(opts wsHandlerOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := r.PathValue("campaignID")

		// Browsers can't set headers on websocket dials, so the token
		// rides in the query string.
		token, err := opts.AuthProvider.VerifyToken(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			log.Error("failed to verify ID token: %v", err)
			http.Error(w, "failed to verify ID token", http.StatusUnauthorized)
			return
		}
		user, err := opts.Repository.CreateUser(r.Context(), token.UID)
		if err != nil {
			log.Error("failed to create user: %v", err)
			http.Error(w, "failed to create user", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Error("failed to accept websocket connection: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sub := opts.RoomManager.Subscribe(campaignID)
		defer opts.RoomManager.Unsubscribe(sub)

		out := make(chan *messages.Message, wsOutBufferSize)

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-out:
					writeMessage(ctx, conn, msg)
				}
			}
		}()

		go func() {
			for msg := range sub.C {
				select {
				case <-ctx.Done():
					return
				case out <- msg:
				}
			}
			// Channel closed: the room manager dropped us for being slow
			// or the room was closed. Tear the connection down.
			cancel()
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read for user %s ended: %v", user.ID, err)
				}
				return
			}

			msg, err := messages.DeserializeMessage(data)
			if err != nil {
				log.Debug("failed to deserialize client message: %v", err)
				sendError(out, "malformed message")
				continue
			}

			switch msg.Type {
			case messages.MessageTypeClientPing:
				pong, _ := messages.NewMessage(messages.MessageTypeServerPong, nil)
				out <- pong
			case messages.MessageTypeClientRoll:
				roll := &messages.ClientRoll{}
				if err := json.Unmarshal(msg.Payload, roll); err != nil {
					log.Debug("failed to unmarshal client roll: %v", err)
					sendError(out, "malformed roll")
					continue
				}
				event := &combat.RollEvent{
					CampaignID:          campaignID,
					DieType:             roll.DieType,
					RawResult:           roll.RawResult,
					RollerDisplayName:   roll.RollerDisplayName,
					ActingUserID:        user.ID,
					CharacterID:         roll.CharacterID,
					TargetParticipantID: roll.TargetParticipantID,
				}
				if err := opts.RollEventQueue.Enqueue(event); err != nil {
					log.Error("failed to enqueue roll event: %v", err)
					sendError(out, "server busy")
				}
			default:
				sendError(out, "unknown message type")
			}
		}
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg *messages.Message) {
	payload, err := messages.SerializeMessage(msg)
	if err != nil {
		log.Error("failed to serialize message: %v", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageBinary, payload); err != nil {
		log.Debug("failed to write websocket message: %v", err)
	}
}

func sendError(out chan<- *messages.Message, text string) {
	msg, err := messages.NewMessage(messages.MessageTypeServerError, &messages.ServerError{Message: text})
	if err != nil {
		return
	}
	select {
	case out <- msg:
	default:
	}
}
