package broadcast

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/healthsync/healthsync/internal/domain"
	"github.com/healthsync/healthsync/internal/metrics"
)

const maxClients = 1024

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdIdentify struct {
	conn *websocket.Conn
	user string
}

func (cmdIdentify) hubCmd() {}

type cmdUnregister struct {
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdBroadcast struct {
	event string
	data  []byte
}

func (cmdBroadcast) hubCmd() {}

type cmdSendTo struct {
	user  string
	event string
	data  []byte
}

func (cmdSendTo) hubCmd() {}

type cmdSend struct {
	conn  *websocket.Conn
	event string
	data  []byte
}

func (cmdSend) hubCmd() {}

type cmdClientCount struct {
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Hub ---

type client struct {
	id     uuid.UUID
	writer *clientWriter
	user   string // empty until the client identifies itself
}

// Hub is the connection registry and broadcast dispatcher. A single actor
// goroutine owns all state, so registration, identity binding, and fanout
// never race. Delivery is at-most-once per connection per event: clients
// connecting after emission never see it, and in-flight sends to a
// disconnecting client are silently dropped.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*client
	identities map[string]map[*websocket.Conn]struct{}
	done       chan struct{}
}

func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*client),
		identities: make(map[string]map[*websocket.Conn]struct{}),
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.done)
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdIdentify:
			h.handleIdentify(c)
		case cmdUnregister:
			h.handleUnregister(c.conn)
		case cmdBroadcast:
			h.handleBroadcast(c)
		case cmdSendTo:
			h.handleSendTo(c)
		case cmdSend:
			h.handleSend(c)
		case cmdClientCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if len(h.clients) >= maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", maxClients)
		c.conn.Close()
		c.errCh <- fmt.Errorf("max clients (%d) reached", maxClients)
		return
	}

	cl := &client{id: uuid.New(), writer: newClientWriter(c.conn, h.clock)}
	h.clients[c.conn] = cl
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "connection_id", cl.id.String(), "total_clients", len(h.clients))
	c.errCh <- nil
}

func (h *Hub) handleIdentify(c cmdIdentify) {
	cl, exists := h.clients[c.conn]
	if !exists {
		return
	}
	if cl.user != "" {
		h.dropIdentity(cl.user, c.conn)
	}
	cl.user = c.user
	if c.user == "" {
		return
	}
	conns, ok := h.identities[c.user]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.identities[c.user] = conns
	}
	conns[c.conn] = struct{}{}
	slog.Debug("Client identified", "connection_id", cl.id.String(), "user", c.user)
}

// handleUnregister removes a connection. Safe to call more than once for
// the same connection, and for connections that never fully registered.
func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cl, exists := h.clients[conn]
	if !exists {
		return
	}

	cl.writer.stop()
	delete(h.clients, conn)
	if cl.user != "" {
		h.dropIdentity(cl.user, conn)
	}
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client unregistered", "connection_id", cl.id.String(), "remaining_clients", len(h.clients))
}

func (h *Hub) dropIdentity(user string, conn *websocket.Conn) {
	conns, ok := h.identities[user]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.identities, user)
	}
}

func (h *Hub) handleBroadcast(c cmdBroadcast) {
	metrics.BroadcastsTotal.WithLabelValues(c.event, "all").Inc()

	var slow []*websocket.Conn
	for conn, cl := range h.clients {
		select {
		case cl.writer.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}
	h.evictSlow(slow)
}

func (h *Hub) handleSendTo(c cmdSendTo) {
	metrics.BroadcastsTotal.WithLabelValues(c.event, "targeted").Inc()

	var slow []*websocket.Conn
	for conn := range h.identities[c.user] {
		cl, exists := h.clients[conn]
		if !exists {
			continue
		}
		select {
		case cl.writer.sendCh <- c.data:
		default:
			slow = append(slow, conn)
		}
	}
	h.evictSlow(slow)
}

func (h *Hub) handleSend(c cmdSend) {
	cl, exists := h.clients[c.conn]
	if !exists {
		return
	}
	select {
	case cl.writer.sendCh <- c.data:
	default:
		h.evictSlow([]*websocket.Conn{c.conn})
	}
}

// evictSlow disconnects clients whose send buffer is full so one slow
// reader never delays delivery to the rest.
func (h *Hub) evictSlow(conns []*websocket.Conn) {
	for _, conn := range conns {
		slog.Warn("Disconnecting slow client")
		metrics.SlowClientsEvicted.Inc()
		h.handleUnregister(conn)
	}
}

func (h *Hub) handleStop() {
	for conn, cl := range h.clients {
		cl.writer.stopGraceful("server shutting down")
		delete(h.clients, conn)
	}
	h.identities = make(map[string]map[*websocket.Conn]struct{})
	metrics.ConnectedClients.Set(0)
}

// --- Public API ---

// Register adds a connection to the registry. The returned error is
// non-nil only when the client limit is reached (the connection is closed
// in that case).
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{conn: conn, errCh: errCh}
	return <-errCh
}

// Identify binds a user identity to a connection for targeted delivery.
func (h *Hub) Identify(conn *websocket.Conn, user string) {
	h.cmdCh <- cmdIdentify{conn: conn, user: user}
}

// Unregister removes a connection. Idempotent.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Broadcast delivers an event to every connection, or only to the target
// user's connections when the event carries one.
func (h *Hub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "event", event.Name, "error", err)
		return
	}
	if event.TargetUser != "" {
		h.cmdCh <- cmdSendTo{user: event.TargetUser, event: event.Name, data: data}
		return
	}
	h.cmdCh <- cmdBroadcast{event: event.Name, data: data}
}

// Send delivers an event to a single connection, bypassing identity
// lookup. Used for the per-connection snapshot on connect.
func (h *Hub) Send(conn *websocket.Conn, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "event", event.Name, "error", err)
		return
	}
	h.cmdCh <- cmdSend{conn: conn, event: event.Name, data: data}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdClientCount{replyCh: replyCh}
	return <-replyCh
}

// Stop closes all client connections and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
	<-h.done
}
