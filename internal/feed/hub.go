// Package feed pushes committed game snapshots to websocket subscribers.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

type subscriber struct {
	gameID string
	conn   *websocket.Conn
	send   chan []byte
}

// Hub fans snapshots out to the subscribers of each game. A subscriber that
// cannot keep up is disconnected.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*subscriber]struct{}
	last     map[string][]byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates an empty Hub.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		last: make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Handler serves GET /games/{id}/feed.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /games/{id}/feed", h.serveFeed)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Publish encodes snapshot and queues it for every subscriber of gameID. The
// latest snapshot is replayed to later subscribers.
func (h *Hub) Publish(gameID string, snapshot any) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("encoding snapshot", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[gameID] = data
	for sub := range h.subs[gameID] {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("feed subscriber too slow; dropping", zap.String("game_id", gameID))
			h.removeLocked(sub)
		}
	}
}

// Subscribers returns the number of live subscribers of gameID.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

func (h *Hub) serveFeed(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("feed upgrade failed", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	sub := &subscriber{gameID: gameID, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*subscriber]struct{})
	}
	h.subs[gameID][sub] = struct{}{}
	if last, ok := h.last[gameID]; ok {
		sub.send <- last
	}
	h.mu.Unlock()
	h.logger.Debug("feed subscribed", zap.String("game_id", gameID))

	go h.writePump(sub)
	h.readPump(sub)
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub.gameID][sub]; !ok {
		return
	}
	delete(h.subs[sub.gameID], sub)
	if len(h.subs[sub.gameID]) == 0 {
		delete(h.subs, sub.gameID)
	}
	close(sub.send)
}

// readPump discards client messages and unregisters the subscriber once the
// connection fails.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(sub)
		h.mu.Unlock()
		_ = sub.conn.Close()
	}()
	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()
	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
