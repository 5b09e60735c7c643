package monitoring

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/duatlab/hourglass/combat"
	"github.com/duatlab/hourglass/sand"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// A FeedEvent is one combat event pushed to connected spectators.
type FeedEvent struct {
	Type    string `json:"type"`
	Actor   string `json:"actor,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Cost    int    `json:"cost,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
	Winner  string `json:"winner,omitempty"`
}

// A Feed maintains the set of connected spectator clients and broadcasts
// combat events to them. It observes the orchestrator as a hook, so
// attaching it costs one AcceptHook call.
type Feed struct {
	clients    map[*feedClient]bool
	broadcast  chan []byte
	register   chan *feedClient
	unregister chan *feedClient
	mu         sync.Mutex
	logger     *log.Logger
	upgrader   websocket.Upgrader
}

// NewFeed creates a feed with no connected clients.
func NewFeed(logger *log.Logger) *Feed {
	return &Feed{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Run handles client connections and broadcasts until ctx is done.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.logger.Printf("combat feed shutting down")
			return
		case client := <-f.register:
			f.mu.Lock()
			f.clients[client] = true
			f.mu.Unlock()
		case client := <-f.unregister:
			f.mu.Lock()
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
			}
			f.mu.Unlock()
		case message := <-f.broadcast:
			f.mu.Lock()
			for client := range f.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(f.clients, client)
				}
			}
			f.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected spectators.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.clients)
}

// Func translates orchestrator hook invocations into feed events.
func (f *Feed) Func(ctx sand.HookCtx) {
	switch ctx.Pos {
	case combat.HookPosActionResolved,
		combat.HookPosActionFailed,
		combat.HookPosSpendRejected:
		res := ctx.Item.(combat.Resolution)

		event := FeedEvent{
			Type:    ctx.Pos.Name,
			Actor:   res.Action.ActorID,
			Kind:    res.Action.Kind.String(),
			Cost:    res.Action.Cost,
			Outcome: res.Outcome.String(),
		}
		if res.Err != nil {
			event.Error = res.Err.Error()
		}

		f.BroadcastEvent(event)
	case combat.HookPosCombatEnded:
		f.BroadcastEvent(FeedEvent{
			Type:   ctx.Pos.Name,
			Winner: ctx.Item.(string),
		})
	}
}

// BroadcastEvent serializes an event and sends it to all connected
// clients. Events are dropped when the feed cannot keep up.
func (f *Feed) BroadcastEvent(event FeedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Printf("cannot serialize feed event: %v", err)
		return
	}

	select {
	case f.broadcast <- payload:
	default:
	}
}

type snapshotMsg struct {
	Type  string                   `json:"type"`
	Pools map[string]sand.Snapshot `json:"pools"`
}

// StartSnapshotPoller spawns a goroutine that periodically broadcasts
// every pool's snapshot. This keeps spectators current without coupling
// the combat loop to the feed.
func (f *Feed) StartSnapshotPoller(
	ctx context.Context,
	orch *combat.Orchestrator,
	interval time.Duration,
) {
	go func() {
		poll := time.NewTicker(interval)
		defer poll.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				payload, err := json.Marshal(snapshotMsg{
					Type:  "Snapshot",
					Pools: orch.SnapshotAll(),
				})
				if err != nil {
					continue
				}

				select {
				case f.broadcast <- payload:
				default:
				}
			}
		}
	}()
}

// ServeWS upgrades an HTTP request into a spectator connection.
func (f *Feed) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Printf("feed upgrade failed: %v", err)
		return
	}

	client := &feedClient{
		feed: f,
		conn: conn,
		send: make(chan []byte, 256),
	}
	f.register <- client

	go client.writePump()
	go client.readPump()
}

// A feedClient is one active spectator connection. The feed is one-way;
// the read pump only consumes control frames until the peer leaves.
type feedClient struct {
	feed *Feed
	conn *websocket.Conn
	send chan []byte
}

func (c *feedClient) readPump() {
	defer func() {
		c.feed.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(
				websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(
				websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
