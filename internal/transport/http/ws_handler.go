package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

var (
	errConnClosed = errors.New("connection closed")
	errSendFull   = errors.New("send buffer full")
)

type WSHandler struct {
	manager  *app.Manager
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(manager *app.Manager, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

// wsConn is the app.Connection of one websocket client. Send never blocks: events go to a
// buffered channel drained by the writer goroutine, and a full buffer drops the event.
type wsConn struct {
	id   string
	send chan domain.Event

	mu     sync.Mutex
	closed bool
}

func newWSConn() *wsConn {
	return &wsConn{id: uuid.NewString(), send: make(chan domain.Event, sendBufferSize)}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(event domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errSendFull
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
}

type submitPayload struct {
	SessionID     string `json:"sessionId"`
	QuestionID    string `json:"questionId"`
	ParticipantID string `json:"participantId"`
	Answer        *int   `json:"answer"`
	Timestamp     int64  `json:"timestamp"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type quizIDPayload struct {
	ID string `json:"id"`
}

type addQuizPayload struct {
	SessionID string `json:"sessionId"`
	QuizID    string `json:"quizId"`
}

// ServeWS upgrades HTTP requests to websockets and feeds client events to the session manager.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	conn := newWSConn()
	log := h.log.With("connection_id", conn.id)
	log.Info("ws connected", "user_id", identity.UserID)

	writerDone := make(chan struct{})
	go h.writeLoop(ws, conn, writerDone, log)

	ctx := r.Context()
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := ws.ReadJSON(&inbound); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				sendBadRequest(conn, "malformed message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("ws read error", "err", err)
			}
			break
		}

		cmd, err := decodeCommand(inbound, identity)
		if err != nil {
			sendBadRequest(conn, err.Error())
			continue
		}
		// Dispatch already reports failures to this connection.
		_ = h.manager.Dispatch(ctx, conn, cmd)
	}

	h.manager.Disconnect(ctx, conn)
	conn.close()
	<-writerDone
	log.Info("ws disconnected")
}

func (h *WSHandler) writeLoop(ws *websocket.Conn, conn *wsConn, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-conn.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				log.Warn("ws write error", "err", err)
				// Unblock the reader so the handler tears the connection down.
				_ = ws.Close()
				drain(conn)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = ws.Close()
				drain(conn)
				return
			}
		}
	}
}

// drain empties the send channel until it is closed so a dead writer never strands events.
func drain(conn *wsConn) {
	go func() {
		for range conn.send {
		}
	}()
}

func sendBadRequest(conn *wsConn, message string) {
	_ = conn.Send(domain.Event{
		Type:    domain.EventError,
		Payload: domain.ErrorPayload{Message: message, Code: "BAD_REQUEST"},
	})
}

// decodeCommand turns a client envelope into an app command.
func decodeCommand(msg inboundMessage, identity Identity) (app.Command, error) {
	switch msg.Type {
	case domain.CommandJoinSession:
		var p joinPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.Username == "" {
			p.Username = identity.Name
		}
		if p.SessionID == "" || p.Username == "" {
			return nil, fmt.Errorf("%s requires sessionId and username", msg.Type)
		}
		return app.JoinSession{SessionID: p.SessionID, Username: p.Username, UserID: identity.UserID}, nil

	case domain.CommandSubmitAnswer:
		var p submitPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.Answer == nil {
			return nil, fmt.Errorf("%s requires answer", msg.Type)
		}
		return app.SubmitAnswer{
			SessionID:     p.SessionID,
			QuestionID:    p.QuestionID,
			ParticipantID: p.ParticipantID,
			Answer:        *p.Answer,
			Timestamp:     p.Timestamp,
		}, nil

	case domain.CommandLeaveSession:
		var p sessionPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		return app.LeaveSession{SessionID: p.SessionID}, nil

	case domain.CommandCreateVideoQuiz:
		var quiz domain.VideoQuiz
		if err := decodePayload(msg, &quiz); err != nil {
			return nil, err
		}
		return app.CreateVideoQuiz{Quiz: quiz}, nil

	case domain.CommandUpdateVideoQuiz:
		var quiz domain.VideoQuiz
		if err := decodePayload(msg, &quiz); err != nil {
			return nil, err
		}
		if quiz.ID == "" {
			return nil, fmt.Errorf("%s requires id", msg.Type)
		}
		return app.UpdateVideoQuiz{Quiz: quiz}, nil

	case domain.CommandDeleteVideoQuiz:
		var p quizIDPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, fmt.Errorf("%s requires id", msg.Type)
		}
		return app.DeleteVideoQuiz{ID: p.ID}, nil

	case domain.CommandAddQuizToSession:
		var p addQuizPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" || p.QuizID == "" {
			return nil, fmt.Errorf("%s requires sessionId and quizId", msg.Type)
		}
		return app.AddQuizToSession{SessionID: p.SessionID, QuizID: p.QuizID}, nil

	case domain.CommandStartVideoQuestion, domain.CommandStartQuestion,
		domain.CommandCloseQuestion, domain.CommandEndSession:
		var p sessionPayload
		if err := decodePayload(msg, &p); err != nil {
			return nil, err
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("%s requires sessionId", msg.Type)
		}
		switch msg.Type {
		case domain.CommandStartVideoQuestion:
			return app.StartVideoQuestion{SessionID: p.SessionID}, nil
		case domain.CommandStartQuestion:
			return app.StartQuestion{SessionID: p.SessionID}, nil
		case domain.CommandCloseQuestion:
			return app.CloseQuestion{SessionID: p.SessionID}, nil
		default:
			return app.EndSession{SessionID: p.SessionID}, nil
		}

	default:
		return nil, fmt.Errorf("unsupported message type %q", msg.Type)
	}
}

func decodePayload(msg inboundMessage, target any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s requires a payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, target); err != nil {
		return fmt.Errorf("invalid %s payload", msg.Type)
	}
	return nil
}
