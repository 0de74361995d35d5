// Package realtime pushes market events to websocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/parimutuel-markets/internal/events"
	"github.com/ayo6706/parimutuel-markets/internal/observability"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// ClientMessage is what a browser sends: subscribe | unsubscribe | ping.
// MarketID is required for subscribe and unsubscribe; "*" means all markets.
type ClientMessage struct {
	Type     string `json:"type"`
	MarketID string `json:"market_id"`
}

type serverMessage struct {
	Type     string `json:"type"`
	MarketID string `json:"market_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

const allMarkets = "*"

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *client) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub tracks websocket subscriptions per market id.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

// NewHub builds a hub. allowOrigin decides the websocket origin check; nil
// accepts same-origin requests only.
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// OriginChecker accepts the listed origins; "*" accepts any.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			set[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		if _, ok := set["*"]; ok {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// HandleWS upgrades the request and serves the client until it disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	observability.AddWebsocketClients(1)
	defer func() {
		h.removeClient(c)
		observability.AddWebsocketClients(-1)
		_ = conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.MarketID == "" {
				_ = c.writeJSON(serverMessage{Type: "error", Error: "market_id is required"})
				continue
			}
			h.subscribe(c, msg.MarketID)
			_ = c.writeJSON(serverMessage{Type: "subscribed", MarketID: msg.MarketID})
		case "unsubscribe":
			h.unsubscribe(c, msg.MarketID)
			_ = c.writeJSON(serverMessage{Type: "unsubscribed", MarketID: msg.MarketID})
		case "ping":
			_ = c.writeJSON(serverMessage{Type: "pong"})
		default:
			_ = c.writeJSON(serverMessage{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Hub) subscribe(c *client, marketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[marketID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[marketID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, marketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[marketID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, marketID)
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers counts the clients that would receive an event for marketID.
func (h *Hub) Subscribers(marketID string) int {
	return len(h.recipients(marketID))
}

func (h *Hub) recipients(marketID string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[*client]struct{})
	for _, key := range []string{marketID, allMarkets} {
		for c := range h.subs[key] {
			seen[c] = struct{}{}
		}
	}
	out := make([]*client, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

// Broadcast sends e to every client subscribed to its market or to all
// markets. Write errors drop that client's delivery only.
func (h *Hub) Broadcast(e events.Event) {
	targets := h.recipients(e.MarketID.String())
	if len(targets) == 0 {
		return
	}
	b, err := json.Marshal(e)
	if err != nil {
		zap.L().Warn("marshal websocket event", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.writeRaw(b); err != nil {
			zap.L().Debug("websocket write failed", zap.Error(err))
		}
	}
}

// Publish lets the hub act as an events.Publisher for single-instance
// deployments without Redis.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	h.Broadcast(e)
	return nil
}
