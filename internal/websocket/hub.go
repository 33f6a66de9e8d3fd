package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/metrics"
)

const commandTimeout = 5 * time.Second

// NewConnectionID generates an opaque connection id at accept time.
func NewConnectionID(clock clockwork.Clock) string {
	suffix, _, _ := strings.Cut(uuid.NewString(), "-")
	return fmt.Sprintf("ws_%d_%s", clock.Now().UnixMilli(), suffix)
}

// --- Command types ---

type hubCmd interface{ hubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) hubCmd() {}

type cmdRegister struct {
	baseHubCmd
	connectionID string
	userID       string
	conn         *websocket.Conn
	replyCh      chan domain.ConnectionRecord
}

type cmdRemove struct {
	baseHubCmd
	connectionID string
}

type cmdTouch struct {
	baseHubCmd
	connectionID string
}

type cmdList struct {
	baseHubCmd
	replyCh chan []domain.ConnectionRecord
}

type cmdDeliver struct {
	baseHubCmd
	connectionID string
	payload      []byte
	errCh        chan error
}

type cmdCount struct {
	baseHubCmd
	replyCh chan int
}

type cmdStop struct {
	baseHubCmd
}

type hubClient struct {
	record domain.ConnectionRecord
	writer *clientWriter
}

// Hub is the in-process connection registry: an actor goroutine owning a map
// from connection id to a live transport handle. It is both the registry and
// the deliverer for the single-process topology. Records have no expiry —
// liveness is the socket itself.
type Hub struct {
	cmdCh   chan hubCmd
	clients map[string]*hubClient
	clock   clockwork.Clock
	done    chan struct{}
}

func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clients: make(map[string]*hubClient),
		clock:   clock,
		done:    make(chan struct{}),
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
		case cmdRemove:
			h.handleRemove(c.connectionID)
		case cmdTouch:
			h.handleTouch(c.connectionID)
		case cmdList:
			h.handleList(c)
		case cmdDeliver:
			h.handleDeliver(c)
		case cmdCount:
			c.replyCh <- len(h.clients)
		case cmdStop:
			h.handleStop()
			return
		default:
			slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	// Duplicate register is an idempotent reconnect, not an error.
	if existing, ok := h.clients[c.connectionID]; ok {
		c.replyCh <- existing.record
		return
	}

	now := h.clock.Now()
	client := &hubClient{
		record: domain.ConnectionRecord{
			ConnectionID: c.connectionID,
			ConnectedAt:  now,
			LastSeen:     now,
			UserID:       c.userID,
		},
	}
	if c.conn != nil {
		connectionID := c.connectionID
		client.writer = newClientWriter(c.conn, h.clock, func() { h.Touch(context.Background(), connectionID) })
	}
	h.clients[c.connectionID] = client

	metrics.WebSocketConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client registered", "connection_id", c.connectionID, "total_clients", len(h.clients))
	c.replyCh <- client.record
}

func (h *Hub) handleRemove(connectionID string) {
	client, ok := h.clients[connectionID]
	if !ok {
		return
	}

	if client.writer != nil {
		client.writer.stop()
	}
	delete(h.clients, connectionID)

	metrics.WebSocketConnectedClients.Set(float64(len(h.clients)))
	slog.Debug("Client removed", "connection_id", connectionID, "remaining_clients", len(h.clients))
}

func (h *Hub) handleTouch(connectionID string) {
	if client, ok := h.clients[connectionID]; ok {
		client.record.LastSeen = h.clock.Now()
	}
}

func (h *Hub) handleList(c cmdList) {
	records := make([]domain.ConnectionRecord, 0, len(h.clients))
	for _, client := range h.clients {
		records = append(records, client.record)
	}
	c.replyCh <- records
}

func (h *Hub) handleDeliver(c cmdDeliver) {
	client, ok := h.clients[c.connectionID]
	if !ok || client.writer == nil {
		c.errCh <- domain.ErrConnectionGone
		return
	}

	select {
	case <-client.writer.doneChannel:
		// Writer exited on a failed write; the socket is dead.
		c.errCh <- domain.ErrConnectionGone
	case client.writer.sendChannel <- c.payload:
		c.errCh <- nil
	default:
		// Send buffer full: the client is too slow to keep up.
		c.errCh <- fmt.Errorf("%w: send buffer full", domain.ErrDeliveryFailed)
	}
}

func (h *Hub) handleStop() {
	for connectionID, client := range h.clients {
		if client.writer != nil {
			client.writer.stopGraceful("Server shutting down")
		}
		delete(h.clients, connectionID)
	}
	metrics.WebSocketConnectedClients.Set(0)
}

// --- Public API ---

// RegisterConn registers a live socket under the given connection id and
// starts its writer.
func (h *Hub) RegisterConn(ctx context.Context, connectionID, userID string, conn *websocket.Conn) (domain.ConnectionRecord, error) {
	return h.register(ctx, connectionID, userID, conn)
}

// Register implements domain.ConnectionRegistry. A record registered without
// a transport is listed but never deliverable; the next broadcast prunes it.
func (h *Hub) Register(ctx context.Context, connectionID, userID string) (domain.ConnectionRecord, error) {
	return h.register(ctx, connectionID, userID, nil)
}

func (h *Hub) register(ctx context.Context, connectionID, userID string, conn *websocket.Conn) (domain.ConnectionRecord, error) {
	replyCh := make(chan domain.ConnectionRecord, 1)
	h.cmdCh <- cmdRegister{connectionID: connectionID, userID: userID, conn: conn, replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case record := <-replyCh:
		metrics.RegistryOpsTotal.WithLabelValues("register", "ok").Inc()
		return record, nil
	case <-ctx.Done():
		return domain.ConnectionRecord{}, ctx.Err()
	case <-timer.Chan():
		metrics.RegistryOpsTotal.WithLabelValues("register", "timeout").Inc()
		return domain.ConnectionRecord{}, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Touch implements domain.ConnectionRegistry.
func (h *Hub) Touch(_ context.Context, connectionID string) error {
	h.cmdCh <- cmdTouch{connectionID: connectionID}
	return nil
}

// Remove implements domain.ConnectionRegistry. Removing an unknown id is a no-op.
func (h *Hub) Remove(_ context.Context, connectionID string) error {
	h.cmdCh <- cmdRemove{connectionID: connectionID}
	metrics.RegistryOpsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}

// ListReachable implements domain.ConnectionRegistry. The returned slice is a
// snapshot; entries may vanish before delivery.
func (h *Hub) ListReachable(ctx context.Context) ([]domain.ConnectionRecord, error) {
	replyCh := make(chan []domain.ConnectionRecord, 1)
	h.cmdCh <- cmdList{replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case records := <-replyCh:
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.Chan():
		return nil, fmt.Errorf("list command timed out after %v", commandTimeout)
	}
}

// Deliver implements domain.Deliverer by writing the payload to the
// connection's send buffer.
func (h *Hub) Deliver(ctx context.Context, connectionID string, payload []byte) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdDeliver{connectionID: connectionID, payload: payload, errCh: errCh}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		return -1
	}
}

// Stop closes all client connections and shuts the hub down.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}
	<-h.done
}
