package ingest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

const (
	EventKMLUpdated   = "kml_updated"
	EventFileUploaded = "file_uploaded"
	EventFileDeleted  = "file_deleted"
)

// Event is pushed to websocket subscribers after a successful mutation.
type Event struct {
	Type         string    `json:"type"`
	CodProductor string    `json:"cod_productor"`
	Payload      any       `json:"payload,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher receives events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	// empty code receives every producer's events
	code string
}

// Hub fans events out to connected websocket clients.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	log  zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		log:  log.With().Str("component", "event_hub").Logger(),
	}
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[s] = struct{}{}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// Subscribers reports the number of live connections.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to matching subscribers. Slow clients are skipped.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Str("type", ev.Type).Msg("event encode failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.code != "" && s.code != ev.CodProductor {
			continue
		}
		select {
		case s.send <- data:
		default:
			h.log.Warn().Str("type", ev.Type).Str("cod_productor", s.code).Msg("subscriber too slow, event dropped")
		}
	}
}

// ServeWS registers conn for code and blocks until the client goes away.
func (h *Hub) ServeWS(conn *websocket.Conn, code string) {
	s := &subscriber{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		code: code,
	}
	h.register(s)

	go h.writePump(s)
	h.readPump(s)
}

// readPump only services control frames; clients do not send events.
func (h *Hub) readPump(s *subscriber) {
	defer func() {
		h.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMsgSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("cod_productor", s.code).Msg("websocket closed")
			}
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
