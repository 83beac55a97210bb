package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-agent/internal/history"
	"github.com/dvloznov/finance-agent/internal/state"
)

// Socket message types.
const (
	SocketTypeQuery    = "query"
	SocketTypeResponse = "response"
	SocketTypeError    = "error"
)

// SocketRequest is a client frame on /ws/chat.
type SocketRequest struct {
	Type      string `json:"type"`
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// SocketResponse is a server frame on /ws/chat.
type SocketResponse struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Envelope  *state.Envelope `json:"envelope,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ChatSocket serves chat over a websocket. One connection is one session;
// the session id is taken from the first frame or generated.
type ChatSocket struct {
	engine   Engine
	history  history.Store
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewChatSocket creates the websocket chat handler. store may be nil.
func NewChatSocket(engine Engine, store history.Store, log zerolog.Logger) *ChatSocket {
	return &ChatSocket{
		engine:  engine,
		history: store,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws/chat
func (s *ChatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	ctx := r.Context()

	for {
		var req SocketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("WebSocket read failed")
			}
			return
		}

		if req.Type != "" && req.Type != SocketTypeQuery {
			s.send(conn, SocketResponse{Type: SocketTypeError, Error: "unknown message type: " + req.Type})
			continue
		}
		query := strings.TrimSpace(req.Query)
		if query == "" || len(query) > maxQueryLength {
			s.send(conn, SocketResponse{Type: SocketTypeError, Error: "query must be 1 to 4000 characters"})
			continue
		}

		if sessionID == "" {
			sessionID = req.SessionID
		}
		if sessionID == "" {
			sessionID = uuid.New().String()
		}

		env := converse(ctx, s.engine, s.history, s.log, sessionID, query)
		s.send(conn, SocketResponse{Type: SocketTypeResponse, SessionID: sessionID, Envelope: &env})
	}
}

func (s *ChatSocket) send(conn *websocket.Conn, msg SocketResponse) {
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn().Err(err).Msg("WebSocket write failed")
	}
}
