package live

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	bghandler "github.com/zhouzirui/adventure-chat/backend/internal/handler/background"
	chathandler "github.com/zhouzirui/adventure-chat/backend/internal/handler/chat"
	chatmodel "github.com/zhouzirui/adventure-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/adventure-chat/backend/internal/service/chat"
	"github.com/zhouzirui/adventure-chat/backend/internal/service/session"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Inbound command types.
const (
	TypeSubmit     = "submit"
	TypeNext       = "next"
	TypeSave       = "save"
	TypeReset      = "reset"
	TypeBackground = "background"
)

// Outbound message types.
const (
	TypeConnected = "connected"
	TypeChat      = "chat"
	TypeSaved     = "saved"
	TypeError     = "error"
)

// WebSocketHandler drives a session over a single websocket: chat changes
// are pushed as they happen and commands are accepted in the other
// direction.
type WebSocketHandler struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates the live handler.
func NewWebSocketHandler(sessions *session.Manager) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route.
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type submitData struct {
	Text string `json:"text"`
}

type backgroundData struct {
	Index *int `json:"index"`
}

type outgoingMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *conn) send(msgType string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *conn) sendError(message string) {
	if err := c.send(TypeError, map[string]string{"message": message}); err != nil {
		log.Debug().Err(err).Msg("[websocket] write error failed")
	}
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[websocket] upgrade failed")
		return
	}
	defer ws.Close()

	c := &conn{ws: ws, sessionID: sessionID}
	log.Info().Str("session", sessionID).Msg("[websocket] new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := sess.Wait(ctx); err != nil {
		return
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	updates, unsubscribe := sess.Chat.Subscribe()
	defer unsubscribe()

	if err := c.send(TypeConnected, map[string]any{
		"chat":       chathandler.StateOf(sess),
		"background": bghandler.ViewOf(sess),
	}); err != nil {
		return
	}

	go h.pushLoop(ctx, cancel, c, sess, updates)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", sessionID).Msg("[websocket] read error")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))

		h.handleMessage(ctx, c, sess, &msg)
	}
}

// pushLoop forwards chat changes and keeps the connection alive. When the
// session is disposed the socket is closed.
func (h *WebSocketHandler) pushLoop(ctx context.Context, cancel context.CancelFunc, c *conn, sess *session.Session, updates <-chan chatmodel.Log) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case history, ok := <-updates:
			if !ok {
				c.sendError("session closed")
				cancel()
				c.ws.Close()
				return
			}
			if err := c.send(TypeChat, chathandler.StateWith(sess, history)); err != nil {
				cancel()
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				cancel()
				return
			}
		}
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, c *conn, sess *session.Session, msg *inboundMessage) {
	switch msg.Type {
	case TypeSubmit:
		var data submitData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid submit payload")
			return
		}
		sess.Chat.Submit(data.Text)
	case TypeNext:
		sess.Chat.AppendGame(chatservice.NextCommand)
	case TypeSave:
		if err := sess.Chat.Save(ctx); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("[websocket] save failed")
			c.sendError("save failed")
			return
		}
		if err := c.send(TypeSaved, nil); err != nil {
			log.Debug().Err(err).Msg("[websocket] write saved failed")
		}
	case TypeReset:
		if _, err := sess.Chat.Reset(ctx); err != nil {
			log.Warn().Err(err).Str("session", sess.ID).Msg("[websocket] reset failed")
			c.sendError("reset failed")
		}
	case TypeBackground:
		var data backgroundData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Index == nil {
			c.sendError("invalid background payload")
			return
		}
		if _, err := sess.Background.Select(ctx, *data.Index); err != nil {
			c.sendError(err.Error())
			return
		}
		if err := c.send(TypeBackground, bghandler.ViewOf(sess)); err != nil {
			log.Debug().Err(err).Msg("[websocket] write background failed")
		}
	default:
		c.sendError("unknown message type")
	}
}
