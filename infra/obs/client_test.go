package obs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOBS is a minimal obs-websocket v5 server.
type fakeOBS struct {
	password string
	// reply returns the status and response data for a request; ok=false
	// with noReply=true leaves the request unanswered.
	reply     func(requestType string) (status requestStatus, data any, noReply bool)
	dropAfter int

	mu       sync.Mutex
	conns    int
	requests []string
}

func (f *fakeOBS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	f.mu.Lock()
	f.conns++
	f.mu.Unlock()

	h := map[string]any{"obsWebSocketVersion": "5.5.0", "rpcVersion": 1}
	if f.password != "" {
		h["authentication"] = map[string]string{"challenge": "chal", "salt": "salt"}
	}
	send(conn, opHello, h)

	var env envelope
	if err := conn.ReadJSON(&env); err != nil || env.Op != opIdentify {
		return
	}
	var id identify
	_ = json.Unmarshal(env.D, &id)
	if f.password != "" && id.Authentication != authResponse(f.password, "salt", "chal") {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(4009, "Authentication failed."))
		return
	}
	send(conn, opIdentified, map[string]int{"negotiatedRpcVersion": 1})

	served := 0
	for {
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Op != opRequest {
			continue
		}
		var req request
		_ = json.Unmarshal(env.D, &req)
		f.mu.Lock()
		f.requests = append(f.requests, req.RequestType)
		f.mu.Unlock()

		status, data, noReply := requestStatus{Result: true, Code: 100}, any(nil), false
		if f.reply != nil {
			status, data, noReply = f.reply(req.RequestType)
		}
		if noReply {
			continue
		}
		resp := map[string]any{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": status,
		}
		if data != nil {
			resp["responseData"] = data
		}
		send(conn, opRequestResponse, resp)
		served++
		if f.dropAfter > 0 && served >= f.dropAfter {
			return
		}
	}
}

func send(conn *websocket.Conn, op int, d any) {
	raw, _ := json.Marshal(d)
	_ = conn.WriteJSON(envelope{Op: op, D: raw})
}

func newTestClient(t *testing.T, f *fakeOBS, password string, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c := NewClient(u.Hostname(), u.Port(), password, timeout, nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientAuthenticatedRequest(t *testing.T) {
	f := &fakeOBS{
		password: "secret",
		reply: func(string) (requestStatus, any, bool) {
			return requestStatus{Result: true, Code: 100}, map[string]string{"currentProgramSceneName": "Slides"}, false
		},
	}
	c := newTestClient(t, f, "secret", time.Second)

	var out struct {
		Name string `json:"currentProgramSceneName"`
	}
	require.NoError(t, c.Request(context.Background(), "GetCurrentProgramScene", nil, &out))
	assert.Equal(t, "Slides", out.Name)
	assert.True(t, c.Connected())
}

func TestClientWrongPassword(t *testing.T) {
	c := newTestClient(t, &fakeOBS{password: "secret"}, "nope", time.Second)
	err := c.Request(context.Background(), "GetVersion", nil, nil)
	require.Error(t, err)
	assert.False(t, c.Connected())
}

func TestClientMissingPassword(t *testing.T) {
	c := newTestClient(t, &fakeOBS{password: "secret"}, "", time.Second)
	err := c.Request(context.Background(), "GetVersion", nil, nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestClientRequestFailure(t *testing.T) {
	f := &fakeOBS{reply: func(string) (requestStatus, any, bool) {
		return requestStatus{Result: false, Code: 601, Comment: "already exists"}, nil, false
	}}
	c := newTestClient(t, f, "", time.Second)

	err := c.Request(context.Background(), "CreateInput", map[string]any{"inputName": "x"}, nil)
	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 601, reqErr.Code)
	assert.Equal(t, "CreateInput", reqErr.RequestType)
	assert.Contains(t, err.Error(), "already exists")
}

func TestClientTimeout(t *testing.T) {
	f := &fakeOBS{reply: func(string) (requestStatus, any, bool) {
		return requestStatus{}, nil, true
	}}
	c := newTestClient(t, f, "", 100*time.Millisecond)
	err := c.Request(context.Background(), "GetVersion", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestClientReconnects(t *testing.T) {
	f := &fakeOBS{dropAfter: 1}
	c := newTestClient(t, f, "", time.Second)
	ctx := context.Background()

	require.NoError(t, c.Request(ctx, "GetVersion", nil, nil))
	require.Eventually(t, func() bool { return !c.Connected() }, time.Second, 10*time.Millisecond)
	require.NoError(t, c.Request(ctx, "GetVersion", nil, nil))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 2, f.conns)
	assert.Equal(t, []string{"GetVersion", "GetVersion"}, f.requests)
}

func TestClientUnreachable(t *testing.T) {
	c := NewClient("127.0.0.1", "1", "", 200*time.Millisecond, nil)
	require.Error(t, c.Request(context.Background(), "GetVersion", nil, nil))
}

func TestAuthResponseDeterministic(t *testing.T) {
	a := authResponse("pw", "salt", "challenge")
	assert.Equal(t, a, authResponse("pw", "salt", "challenge"))
	assert.NotEqual(t, a, authResponse("pw", "salt", "other"))
	assert.Len(t, a, 44)
}
