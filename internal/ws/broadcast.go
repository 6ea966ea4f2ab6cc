package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agent-pulse/pulse/internal/session"
)

// ErrTooManyConnections is returned by AddClient once the configured
// connection limit is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(b *Broadcaster, conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// trySend queues msg without blocking. It reports false only when the
// client's buffer is full; sends to a closed client are dropped.
func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Broadcaster fans session state out to connected WebSocket clients.
// Updates are coalesced into deltas on a throttle timer; full snapshots
// go out periodically and on connect. All outgoing state passes through
// the privacy filter.
type Broadcaster struct {
	mu             sync.RWMutex
	clients        map[*client]bool
	privacy        *session.PrivacyFilter
	store          *session.Store
	throttle       time.Duration
	maxClients     int
	snapshotTicker *time.Ticker
	done           chan struct{}
	closeOnce      sync.Once
	seq            atomic.Uint64

	// healthHook, when set, contributes per-source health entries to
	// snapshot frames so late-connecting clients see degraded sources.
	healthHook func() []SourceHealthPayload

	flushMu        sync.Mutex
	pendingUpdates []*session.SessionState
	pendingRemoved []string
	flushTimer     *time.Timer
}

// NewBroadcaster starts the snapshot loop and returns a broadcaster
// with no masking applied; use SetPrivacyFilter to change that.
// maxClients of 0 means unlimited.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxClients int) *Broadcaster {
	b := &Broadcaster{
		clients:    make(map[*client]bool),
		privacy:    &session.PrivacyFilter{},
		store:      store,
		throttle:   throttle,
		maxClients: maxClients,
		done:       make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// Stop ends the periodic snapshot loop and disconnects all clients.
func (b *Broadcaster) Stop() {
	b.closeOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)
	})

	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// AddClient registers conn and sends it an initial snapshot.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := newClient(b, conn)
	b.clients[c] = true
	b.mu.Unlock()

	msg := b.snapshotMessage()
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] snapshot marshal error: %v", err)
		return c, nil
	}

	c.trySend(data)

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// SetPrivacyFilter swaps the active filter; a config reload applies the
// new masking to everything sent afterwards.
func (b *Broadcaster) SetPrivacyFilter(f *session.PrivacyFilter) {
	if f == nil {
		f = &session.PrivacyFilter{}
	}
	b.mu.Lock()
	b.privacy = f
	b.mu.Unlock()
}

func (b *Broadcaster) privacyFilter() *session.PrivacyFilter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.privacy
}

// SetHealthHook registers a callback that reports unhealthy sources
// for inclusion in snapshot frames.
func (b *Broadcaster) SetHealthHook(fn func() []SourceHealthPayload) {
	b.mu.Lock()
	b.healthHook = fn
	b.mu.Unlock()
}

// FilterSessions applies the privacy filter to a session list, for the
// HTTP API to share the exact masking the socket uses.
func (b *Broadcaster) FilterSessions(sessions []*session.SessionState) []*session.SessionState {
	return b.privacyFilter().FilterSlice(sessions)
}

// QueueUpdate schedules states for the next coalesced delta.
func (b *Broadcaster) QueueUpdate(states []*session.SessionState) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, states...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueRemoval schedules session removals for the next coalesced delta.
func (b *Broadcaster) QueueRemoval(ids []string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	for _, id := range ids {
		b.pendingRemoved = append(b.pendingRemoved, b.privacyFilter().MaskID(id))
	}

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// PublishStatusChange pushes a transition immediately, bypassing the
// delta throttle.
func (b *Broadcaster) PublishStatusChange(sessionID string, prev, status session.Status) {
	b.broadcast(WSMessage{
		Type: MsgStatusChange,
		Payload: StatusChangePayload{
			SessionID: b.privacyFilter().MaskID(sessionID),
			Status:    status,
			Previous:  prev,
		},
	})
}

// PublishAgentChange pushes an agent type detection immediately.
func (b *Broadcaster) PublishAgentChange(sessionID string, agentType session.AgentType) {
	b.broadcast(WSMessage{
		Type: MsgAgentChange,
		Payload: AgentChangePayload{
			SessionID: b.privacyFilter().MaskID(sessionID),
			AgentType: agentType,
		},
	})
}

// PublishSourceHealth pushes a source health transition immediately.
func (b *Broadcaster) PublishSourceHealth(p SourceHealthPayload) {
	b.broadcast(WSMessage{Type: MsgSourceHealth, Payload: p})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	removed := b.pendingRemoved
	b.pendingUpdates = nil
	b.pendingRemoved = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(updates) == 0 && len(removed) == 0 {
		return
	}

	msg := WSMessage{
		Type: MsgDelta,
		Payload: DeltaPayload{
			Updates: b.privacyFilter().FilterSlice(updates),
			Removed: removed,
		},
	}
	b.broadcast(msg)
}

func (b *Broadcaster) snapshotMessage() WSMessage {
	b.mu.RLock()
	hook := b.healthHook
	b.mu.RUnlock()

	payload := SnapshotPayload{
		Sessions:    b.privacyFilter().FilterSlice(b.store.GetAll()),
		ActiveCount: b.store.ActiveCount(),
	}
	if hook != nil {
		payload.SourceHealth = hook()
	}
	return WSMessage{Type: MsgSnapshot, Payload: payload}
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			b.broadcast(b.snapshotMessage())
		}
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ws] broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			// Client can't keep up, disconnect it
			log.Printf("[ws] client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
