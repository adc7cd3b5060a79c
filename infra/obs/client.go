// Package obs drives OBS Studio through obs-websocket v5. Client speaks the
// protocol; Renderer implements the playback commands on top of it.
package obs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kilianp07/obsched/core/logger"
)

// ErrDisconnected is returned for requests cut off by a lost connection.
var ErrDisconnected = errors.New("obs connection lost")

// ErrAuthRequired is returned when OBS asks for a password and none is set.
var ErrAuthRequired = errors.New("obs requires a password")

// Client is a request/response client for obs-websocket v5. It connects
// lazily and reconnects on the next request after a failure.
type Client struct {
	url      string
	password string
	timeout  time.Duration
	dialer   *websocket.Dialer
	log      logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan requestResponse

	writeMu sync.Mutex
	nextID  atomic.Uint64
}

// NewClient creates a client for the server at host:port.
func NewClient(host, port, password string, timeout time.Duration, log logger.Logger) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port)}
	return &Client{
		url:      u.String(),
		password: password,
		timeout:  timeout,
		dialer:   &websocket.Dialer{HandshakeTimeout: timeout},
		log:      logger.Nop(log),
	}
}

// Connected reports whether a session is currently established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close drops the connection. Pending requests fail with ErrDisconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Request sends one request and decodes its response data into out, which
// may be nil.
func (c *Client) Request(ctx context.Context, requestType string, data, out any) error {
	conn, err := c.connection(ctx)
	if err != nil {
		return err
	}
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan requestResponse, 1)
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return ErrDisconnected
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.pending != nil {
			delete(c.pending, id)
		}
		c.mu.Unlock()
	}()

	if err := c.write(conn, opRequest, request{RequestType: requestType, RequestID: id, RequestData: data}); err != nil {
		c.drop(conn, err)
		return fmt.Errorf("send %s: %w", requestType, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("obs %s: timed out after %s", requestType, c.timeout)
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("obs %s: %w", requestType, ErrDisconnected)
		}
		if !resp.RequestStatus.Result {
			return &RequestError{RequestType: requestType, Code: resp.RequestStatus.Code, Comment: resp.RequestStatus.Comment}
		}
		if out != nil && len(resp.ResponseData) > 0 {
			if err := json.Unmarshal(resp.ResponseData, out); err != nil {
				return fmt.Errorf("decode %s response: %w", requestType, err)
			}
		}
		return nil
	}
}

func (c *Client) connection(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := c.handshake(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.pending = make(map[string]chan requestResponse)
	go c.readLoop(conn)
	c.log.Infof("connected to obs at %s", c.url)
	return conn, nil
}

// handshake dials and completes Hello/Identify/Identified.
func (c *Client) handshake(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial obs: %w", err)
	}
	deadline, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(deadline)

	var h hello
	if err := readOp(conn, opHello, &h); err != nil {
		_ = conn.Close()
		return nil, err
	}
	id := identify{RPCVersion: rpcVersion}
	if h.Authentication != nil {
		if c.password == "" {
			_ = conn.Close()
			return nil, ErrAuthRequired
		}
		id.Authentication = authResponse(c.password, h.Authentication.Salt, h.Authentication.Challenge)
	}
	if err := c.write(conn, opIdentify, id); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("identify: %w", err)
	}
	if err := readOp(conn, opIdentified, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})
	return conn, nil
}

func readOp(conn *websocket.Conn, op int, out any) error {
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		if websocket.IsCloseError(err, 4009) {
			return fmt.Errorf("obs authentication failed: %w", err)
		}
		return fmt.Errorf("read op %d: %w", op, err)
	}
	if env.Op != op {
		return fmt.Errorf("expected op %d, got %d", op, env.Op)
	}
	if out != nil {
		return json.Unmarshal(env.D, out)
	}
	return nil
}

func (c *Client) write(conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return conn.WriteJSON(envelope{Op: op, D: raw})
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.drop(conn, err)
			return
		}
		switch env.Op {
		case opRequestResponse:
			var resp requestResponse
			if err := json.Unmarshal(env.D, &resp); err != nil {
				c.log.Warnf("obs: bad response: %v", err)
				continue
			}
			c.mu.Lock()
			if ch := c.pending[resp.RequestID]; ch != nil {
				select {
				case ch <- resp:
				default:
				}
			}
			c.mu.Unlock()
		case opEvent:
		default:
			c.log.Debugf("obs: ignoring op %d", env.Op)
		}
	}
}

// drop forgets conn and fails its pending requests.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	_ = conn.Close()
	for _, ch := range pending {
		close(ch)
	}
	c.log.Warnf("obs connection closed: %v", cause)
}
