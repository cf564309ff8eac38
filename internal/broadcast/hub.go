package broadcast

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/complyos/taskcore/internal/store"
)

const defaultSendTimeout = 5 * time.Second

// ClearHandler routes a fields_cleared message into the engine's
// clear-then-reconcile cycle. Wired by the caller to avoid a dependency on
// the reconcile package.
type ClearHandler func(ctx context.Context, taskID int64, formType string, preserveProgress bool)

// Hub manages WebSocket connections and fans out change notifications.
// Zero connected clients is fine: Publish becomes a no-op.
type Hub struct {
	clients     sync.Map // connection id -> *client
	onCleared   ClearHandler
	sendTimeout time.Duration
	tabsVersion atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClearHandler routes fields_cleared messages to the engine.
func WithClearHandler(h ClearHandler) HubOption {
	return func(hub *Hub) { hub.onCleared = h }
}

// WithSendTimeout bounds each per-connection write.
func WithSendTimeout(d time.Duration) HubOption {
	return func(hub *Hub) { hub.sendTimeout = d }
}

// NewHub creates a hub with no connections.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{sendTimeout: defaultSendTimeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type client struct {
	id   string
	conn *websocket.Conn

	// mu serializes sends and guards the auth/version state. Holding it
	// across the version check and the write is what guarantees per-task
	// generation order on this connection.
	mu        sync.Mutex
	authed    bool
	userID    int64
	companyID int64
	lastTask  map[int64]int64
	lastTabs  map[int64]int64
}

// Handle upgrades an HTTP request to a WebSocket connection and runs its
// read loop until the client disconnects.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin checks are the edge proxy's job
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	c := &client{
		id:       uuid.Must(uuid.NewV7()).String(),
		conn:     conn,
		lastTask: make(map[int64]int64),
		lastTabs: make(map[int64]int64),
	}
	h.clients.Store(c.id, c)
	slog.Info("client connected", "conn", c.id)

	defer func() {
		h.clients.Delete(c.id)
		conn.CloseNow()
		slog.Info("client disconnected", "conn", c.id)
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		msg, err := Decode(data)
		if err != nil {
			slog.Warn("rejected malformed message", "conn", c.id, "error", err)
			continue
		}

		h.dispatch(r.Context(), c, msg)
	}
}

// dispatch handles one inbound message.
func (h *Hub) dispatch(ctx context.Context, c *client, msg Message) {
	switch m := msg.(type) {
	case Authenticate:
		c.mu.Lock()
		c.authed = true
		c.userID = m.UserID
		c.companyID = m.CompanyID
		c.mu.Unlock()
		slog.Info("client authenticated", "conn", c.id, "user", m.UserID, "company", m.CompanyID)

	case FormFields:
		c.mu.Lock()
		authed := c.authed
		c.mu.Unlock()
		if !authed {
			slog.Warn("dropped form_fields from unauthenticated connection", "conn", c.id)
			return
		}
		if h.onCleared != nil {
			h.onCleared(ctx, m.TaskID, m.FormType, m.Metadata.PreserveProgress)
		}

	default:
		// task_update and company_tabs_updated are server-to-client only.
		slog.Warn("dropped client message of server-only type", "conn", c.id, "type", msg.Kind())
	}
}

// Publish delivers a task_update to every authenticated connection.
// Task rows carry no company id in this store, so authentication is the only
// scoping applied here; company scoping exists for tabs updates, whose
// payload names the company. Fire-and-forget: per-connection sends run in
// parallel, failures are logged and absorbed, and nothing is reported back
// to the reconciliation caller.
func (h *Hub) Publish(snap store.Snapshot) {
	data, err := Encode(TaskUpdateOf(snap))
	if err != nil {
		slog.Error("encode task_update failed", "task", snap.TaskID, "error", err)
		return
	}

	h.clients.Range(func(_, value any) bool {
		c := value.(*client)
		go c.sendTaskUpdate(snap.TaskID, snap.Version, data, h.sendTimeout)
		return true
	})
}

// PublishCompanyTabs delivers an entitlement change to the company's
// connections with the same versioned dedupe discipline as task updates.
func (h *Hub) PublishCompanyTabs(companyID int64, availableTabs []string) {
	version := h.tabsVersion.Add(1)
	data, err := Encode(CompanyTabsUpdated{
		CompanyID:         companyID,
		AvailableTabs:     availableTabs,
		CacheInvalidation: true,
		Version:           version,
	})
	if err != nil {
		slog.Error("encode company_tabs_updated failed", "company", companyID, "error", err)
		return
	}

	h.clients.Range(func(_, value any) bool {
		c := value.(*client)
		go c.sendTabsUpdate(companyID, version, data, h.sendTimeout)
		return true
	})
}

// ClientCount returns the number of connected clients. Used by tests.
func (h *Hub) ClientCount() int {
	n := 0
	h.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (c *client) sendTaskUpdate(taskID, version int64, data []byte, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authed {
		return
	}
	if last, ok := c.lastTask[taskID]; ok && last >= version {
		// Unchanged or older than what this connection already has.
		return
	}
	c.lastTask[taskID] = version

	c.write(data, timeout, "task", taskID)
}

func (c *client) sendTabsUpdate(companyID, version int64, data []byte, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authed || c.companyID != companyID {
		return
	}
	if last, ok := c.lastTabs[companyID]; ok && last >= version {
		return
	}
	c.lastTabs[companyID] = version

	c.write(data, timeout, "company", companyID)
}

// write performs one bounded send. Failure is logged, never retried: the
// version marker stays advanced and the next state change redelivers the
// then-current snapshot.
func (c *client) write(data []byte, timeout time.Duration, kind string, id int64) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Error("broadcast send failed", "conn", c.id, kind, id, "error", err)
	}
}
