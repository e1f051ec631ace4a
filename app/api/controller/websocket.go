package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relaygrid/pointsx/pkg/redis"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: In production, restrict to specific origins
		return true
	},
}

// ClientMessage represents messages sent by WebSocket clients.
type ClientMessage struct {
	Action    string `json:"action"`    // "subscribe" or "unsubscribe"
	AccountID string `json:"accountId"` // Account ID to subscribe to, or "*" for all accounts
}

// ServerMessage represents messages sent to WebSocket clients.
type ServerMessage struct {
	Type    string      `json:"type"`    // "ledger.event", "subscribed", "unsubscribed", "error"
	Payload interface{} `json:"payload"` // Event-specific data
}

// clientSubscriptions tracks what accounts a client is subscribed to.
type clientSubscriptions struct {
	mu       sync.RWMutex
	accounts map[string]bool
}

func newClientSubscriptions() *clientSubscriptions {
	return &clientSubscriptions{accounts: make(map[string]bool)}
}

func (cs *clientSubscriptions) Subscribe(accountID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.accounts[accountID] = true
}

func (cs *clientSubscriptions) Unsubscribe(accountID string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.accounts, accountID)
}

// IsSubscribed checks a subscription. Wildcard (*) matches all accounts.
func (cs *clientSubscriptions) IsSubscribed(accountID string) bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	if cs.accounts["*"] {
		return true
	}
	return cs.accounts[accountID]
}

// HandleWebSocket upgrades the connection and streams accepted ledger events
// relayed from the Redis channel.
//
// Client sends: {"action": "subscribe", "accountId": "acct_..."} or "*".
// Server sends: {"type": "ledger.event", "payload": {...}}.
func (c *Controller) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if c.App.RedisClient == nil {
		http.Error(w, "Real-time events not available (Redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.App.Logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	c.App.Logger.Info("WebSocket client connected", zap.String("remote_addr", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newClientSubscriptions()
	var writeMu sync.Mutex

	send := func(msg ServerMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			cancel()
		}
	}

	// Relay: Redis channel -> matching subscribers.
	pubsub := c.App.RedisClient.Subscribe(ctx, redis.LedgerChannel)
	defer func() { _ = pubsub.Close() }()

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					cancel()
					return
				}
				var feed LedgerFeedEvent
				if err := json.Unmarshal([]byte(m.Payload), &feed); err != nil {
					continue
				}
				if !subs.IsSubscribed(feed.AccountID) {
					continue
				}
				send(ServerMessage{Type: "ledger.event", Payload: feed})
			}
		}
	}()

	// Read loop: subscription management and connection liveness.
	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Action {
		case "subscribe":
			if msg.AccountID == "" {
				send(ServerMessage{Type: "error", Payload: map[string]string{"message": "accountId is required"}})
				continue
			}
			subs.Subscribe(msg.AccountID)
			send(ServerMessage{Type: "subscribed", Payload: map[string]string{"accountId": msg.AccountID}})
		case "unsubscribe":
			subs.Unsubscribe(msg.AccountID)
			send(ServerMessage{Type: "unsubscribed", Payload: map[string]string{"accountId": msg.AccountID}})
		default:
			send(ServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action"}})
		}
	}

	c.App.Logger.Info("WebSocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
}
