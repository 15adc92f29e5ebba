package game

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval   = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

type ClientConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
}

// sendEnvelope never blocks: a client that does not keep up loses messages.
func (c *ClientConn) sendEnvelope(env Envelope) bool {
	b, err := json.Marshal(env)
	if err != nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// handleWS: one connection is one participant for its whole lifetime.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("ws upgrade failed", "err", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	cc := newClientConn(ws)
	id := s.hub.Connect(cc)
	s.log.Debug("ws connected", "player", id, "remote", r.RemoteAddr)

	// writer loop
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-cc.send:
				if !ok {
					return
				}
				if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// reader loop
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			break
		}
		s.dispatch(id, data)
	}

	s.hub.Disconnect(id)
	cc.Close()
	s.log.Debug("ws disconnected", "player", id)
}

func (s *Server) dispatch(id string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.hub.sendError(id, "bad_json", "invalid json")
		return
	}

	switch env.Type {
	case EventCreateRoom:
		var p CreateRoomPayload
		if !s.decode(id, env, &p) {
			return
		}
		s.hub.CreateRoom(id, p.Name)

	case EventJoinRoom:
		var p JoinRoomPayload
		if !s.decode(id, env, &p) {
			return
		}
		s.hub.JoinRoom(id, p.Code, p.Name)

	case EventCreateCPUGame:
		var p CreateCPUGamePayload
		if !s.decode(id, env, &p) {
			return
		}
		s.hub.CreateCPUGame(id, p.Name, p.Difficulty)

	case EventPlayerReady:
		s.hub.PlayerReady(id)

	case EventStartGame:
		s.hub.StartGame(id)

	case EventSubmitTriviaAnswer:
		var p SubmitTriviaAnswerPayload
		if !s.decode(id, env, &p) {
			return
		}
		s.hub.SubmitTriviaAnswer(id, p.Answer)

	case EventSubmitCategoryItem:
		var p SubmitCategoryItemPayload
		if !s.decode(id, env, &p) {
			return
		}
		s.hub.SubmitCategoryItem(id, p.Item)

	case EventPassTurn:
		s.hub.PassTurn(id)

	case EventLeaveGame:
		s.hub.LeaveGame(id)

	default:
		s.hub.sendError(id, "unknown_type", "unknown message type")
	}
}

func (s *Server) decode(id string, env Envelope, v any) bool {
	if len(env.Payload) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		s.hub.sendError(id, "bad_input", "invalid payload")
		return false
	}
	return true
}
