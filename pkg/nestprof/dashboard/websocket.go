package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// client serializes writes to one connection; gorilla connections allow a
// single concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// addClient registers c unless the server is full. The check and the insert
// share one critical section.
func (s *Server) addClient(c *client) (int, bool) {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	if len(s.clients) >= s.maxClients {
		return len(s.clients), false
	}
	s.clients[c] = struct{}{}
	return len(s.clients), true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Refuse early with a plain 503 when already full
	s.clientsMutex.RLock()
	full := len(s.clients) >= s.maxClients
	s.clientsMutex.RUnlock()
	if full {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	count, ok := s.addClient(c)
	if !ok {
		// Lost the race for the last slot during the upgrade
		c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "maximum clients reached"))
		return
	}
	s.logger.Debug().Int("clients", count).Msg("websocket client connected")

	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, c)
		s.clientsMutex.Unlock()
	}()

	// New clients see the current tree straight away
	if snap, ok := s.Snapshot(); ok {
		if data, err := json.Marshal(message{Type: "snapshot", Data: snap}); err == nil {
			c.write(websocket.TextMessage, data)
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Reading is required to notice disconnects
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Debug().Err(err).Msg("websocket read error")
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.stop:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) broadcast() {
	for {
		select {
		case m := <-s.updates:
			s.broadcastMessage(m)
		case <-s.stop:
			return
		}
	}
}

func (s *Server) broadcastMessage(m message) {
	s.clientsMutex.RLock()
	if len(s.clients) == 0 {
		s.clientsMutex.RUnlock()
		return
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMutex.RUnlock()

	data, err := json.Marshal(m)
	if err != nil {
		s.logger.Error().Err(err).Str("type", m.Type).Msg("marshaling websocket message")
		return
	}

	var failed []*client
	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			failed = append(failed, c)
		}
	}

	if len(failed) > 0 {
		s.clientsMutex.Lock()
		for _, c := range failed {
			delete(s.clients, c)
		}
		s.clientsMutex.Unlock()
	}
}
