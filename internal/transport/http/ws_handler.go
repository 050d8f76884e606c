package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cbt-exam-service/internal/app"
	"cbt-exam-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler drives one test session per websocket connection. The session
// owns the 1 Hz countdown; the first connection starts it and overlapping
// connections to the same attempt share it. When the last connection goes
// away the session is released, the clock stops, and the persisted answers
// stay put for a resume.
type WSHandler struct {
	service  *app.ExamService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ExamService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// attempt use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	testID := r.URL.Query().Get("testId")
	identity := identityFromQuery(r)
	if testID == "" || domain.ResolveUserKey(identity) == "" {
		http.Error(w, "missing testId or identity (userId, email, or name)", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.StartSession(r.Context(), identity, testID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancel := session.Subscribe()
	defer func() {
		cancel()
		h.service.ReleaseSession(identity, testID)
	}()
	session.StartCountdown(time.Second)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snapshot, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: snapshot}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r.Context(), session, send, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, session *app.Session, send chan<- outboundMessage[any], inbound inboundMessage) {
	var err error
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
			return
		}
		var feedback *app.Feedback
		feedback, err = session.SelectAnswer(ctx, payload.Option)
		if err == nil && feedback != nil {
			send <- outboundMessage[any]{Type: "feedback", Payload: *feedback}
		}
	case "navigate":
		var payload navigatePayload
		if jsonErr := json.Unmarshal(inbound.Payload, &payload); jsonErr != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid navigate payload"}}
			return
		}
		err = session.Navigate(payload.Index)
	case "next":
		err = session.Next()
	case "prev":
		err = session.Prev()
	case "flag":
		err = session.ToggleFlag(ctx)
	case "submit":
		err = session.RequestSubmit()
	case "confirm":
		err = session.ConfirmSubmit(ctx)
	case "cancel":
		err = session.CancelSubmit()
	case "ack":
		err = session.AcknowledgeFeedback(ctx)
	default:
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		return
	}

	// Stray events against a finished session are expected during the
	// submit transition; surface everything else.
	if err != nil && !errors.Is(err, domain.ErrSessionNotActive) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
}

func identityFromQuery(r *http.Request) domain.UserIdentity {
	return domain.UserIdentity{
		ID:    r.URL.Query().Get("userId"),
		Email: r.URL.Query().Get("email"),
		Name:  r.URL.Query().Get("name"),
	}
}
