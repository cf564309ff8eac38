package broadcast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complyos/taskcore/internal/status"
	"github.com/complyos/taskcore/internal/store"
)

type clearCall struct {
	taskID           int64
	formType         string
	preserveProgress bool
}

// hubConn wraps a dialed connection with helpers that keep the tests focused
// on message flow rather than websocket plumbing.
type hubConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialHub(t *testing.T, server *httptest.Server) *hubConn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return &hubConn{t: t, conn: conn}
}

func (c *hubConn) send(msg Message) {
	c.t.Helper()
	data, err := Encode(msg)
	require.NoError(c.t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, data))
}

func (c *hubConn) recv() Message {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	require.NoError(c.t, err)
	msg, err := Decode(data)
	require.NoError(c.t, err)
	return msg
}

// recvNone asserts no message arrives within a short window.
func (c *hubConn) recvNone() {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, data, err := c.conn.Read(ctx)
	if err == nil {
		c.t.Fatalf("unexpected message: %s", data)
	}
}

// newHubServer starts a hub behind an httptest server and returns a channel
// that observes ClearHandler calls. Waiting on the channel after an inbound
// message also proves the read loop has processed everything before it.
func newHubServer(t *testing.T) (*Hub, *httptest.Server, chan clearCall) {
	t.Helper()
	calls := make(chan clearCall, 8)
	hub := NewHub(WithClearHandler(func(_ context.Context, taskID int64, formType string, preserve bool) {
		calls <- clearCall{taskID: taskID, formType: formType, preserveProgress: preserve}
	}))

	server := httptest.NewServer(http.HandlerFunc(hub.Handle))
	t.Cleanup(server.Close)
	return hub, server, calls
}

func waitForClear(t *testing.T, calls chan clearCall) clearCall {
	t.Helper()
	select {
	case call := <-calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("clear handler was not invoked")
		return clearCall{}
	}
}

func TestHub_PublishToAuthenticatedClient(t *testing.T) {
	hub, server, calls := newHubServer(t)
	c := dialHub(t, server)

	c.send(Authenticate{UserID: 4, CompanyID: 12})
	// A form_fields round trip confirms the authenticate was dispatched.
	c.send(FormFields{Action: FieldsClearedAction, TaskID: 1, FormType: "kyb"})
	waitForClear(t, calls)

	hub.Publish(store.Snapshot{TaskID: 7, Status: status.InProgress, Progress: 50, Version: 3})

	msg := c.recv()
	update, ok := msg.(TaskUpdate)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, int64(7), update.ID)
	assert.Equal(t, status.InProgress, update.Status)
	assert.Equal(t, 50, update.Progress)
	assert.Equal(t, int64(3), update.Version)
}

func TestHub_DedupesByTaskVersion(t *testing.T) {
	hub, server, calls := newHubServer(t)
	c := dialHub(t, server)

	c.send(Authenticate{UserID: 4, CompanyID: 12})
	c.send(FormFields{Action: FieldsClearedAction, TaskID: 1, FormType: "kyb"})
	waitForClear(t, calls)

	hub.Publish(store.Snapshot{TaskID: 7, Status: status.InProgress, Progress: 50, Version: 3})
	first := c.recv().(TaskUpdate)
	assert.Equal(t, int64(3), first.Version)

	// Same version again: swallowed. A newer version: delivered.
	hub.Publish(store.Snapshot{TaskID: 7, Status: status.InProgress, Progress: 50, Version: 3})
	hub.Publish(store.Snapshot{TaskID: 7, Status: status.ReadyForSubmission, Progress: 100, Version: 4})

	second := c.recv().(TaskUpdate)
	assert.Equal(t, int64(4), second.Version)
	c.recvNone()
}

func TestHub_UnauthenticatedClientReceivesNothing(t *testing.T) {
	hub, server, _ := newHubServer(t)
	c := dialHub(t, server)

	hub.Publish(store.Snapshot{TaskID: 7, Status: status.InProgress, Progress: 50, Version: 1})
	c.recvNone()
}

func TestHub_FormFieldsRequiresAuthentication(t *testing.T) {
	_, server, calls := newHubServer(t)
	c := dialHub(t, server)

	c.send(FormFields{Action: FieldsClearedAction, TaskID: 9, FormType: "kyb"})

	select {
	case call := <-calls:
		t.Fatalf("clear handler invoked for unauthenticated connection: %+v", call)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHub_FormFieldsRoutesToClearHandler(t *testing.T) {
	_, server, calls := newHubServer(t)
	c := dialHub(t, server)

	c.send(Authenticate{UserID: 4, CompanyID: 12})
	c.send(FormFields{
		Action:   FieldsClearedAction,
		TaskID:   9,
		FormType: "ky3p",
		Metadata: FormFieldsMetadata{PreserveProgress: true},
	})

	call := waitForClear(t, calls)
	assert.Equal(t, int64(9), call.taskID)
	assert.Equal(t, "ky3p", call.formType)
	assert.True(t, call.preserveProgress)
}

func TestHub_CompanyTabsScopedToCompany(t *testing.T) {
	hub, server, calls := newHubServer(t)

	inCompany := dialHub(t, server)
	inCompany.send(Authenticate{UserID: 1, CompanyID: 12})
	inCompany.send(FormFields{Action: FieldsClearedAction, TaskID: 1, FormType: "kyb"})
	waitForClear(t, calls)

	otherCompany := dialHub(t, server)
	otherCompany.send(Authenticate{UserID: 2, CompanyID: 99})
	otherCompany.send(FormFields{Action: FieldsClearedAction, TaskID: 1, FormType: "kyb"})
	waitForClear(t, calls)

	hub.PublishCompanyTabs(12, []string{"tasks", "files"})

	msg := inCompany.recv()
	tabs, ok := msg.(CompanyTabsUpdated)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, int64(12), tabs.CompanyID)
	assert.Equal(t, []string{"tasks", "files"}, tabs.AvailableTabs)
	assert.True(t, tabs.CacheInvalidation)

	otherCompany.recvNone()
}

func TestHub_ClientCountTracksConnections(t *testing.T) {
	hub, server, _ := newHubServer(t)
	assert.Equal(t, 0, hub.ClientCount())

	c := dialHub(t, server)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	c.conn.CloseNow()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}
