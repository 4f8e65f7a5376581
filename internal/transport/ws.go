package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Relay frame ops.
const (
	OpID      = "id"
	OpConnect = "connect"
	OpOpen    = "open"
	OpData    = "data"
	OpClose   = "close"
	OpError   = "error"
)

// Relay error codes carried in Frame.Error.
const (
	CodePeerUnavailable = "peer-unavailable"
	CodeNotConnected    = "not-connected"
	CodeBadFrame        = "bad-frame"
)

// Frame is the unit exchanged between a relay client and the relay. Peer is
// the target on the way in and the origin on the way out.
type Frame struct {
	Op    string `json:"op"`
	Peer  string `json:"peer,omitempty"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// FrameError maps a relay error code to a transport error.
func FrameError(code string) error {
	switch code {
	case CodePeerUnavailable:
		return ErrPeerUnavailable
	case CodeNotConnected:
		return ErrNotConnected
	}
	return fmt.Errorf("relay error: %s", code)
}

const (
	writeWait = 10 * time.Second
	idWait    = 10 * time.Second
)

// WSClient is an Endpoint that reaches other peers through the websocket relay.
type WSClient struct {
	conn     *websocket.Conn
	id       string
	httpBase string
	http     *http.Client
	box      *mailbox

	writeMu sync.Mutex

	mu     sync.Mutex
	links  map[string]bool
	closed bool
}

var _ Endpoint = (*WSClient)(nil)

// Dial connects to the relay at relayURL (ws:// or http:// form, path /ws) and
// waits for the relay to assign this endpoint its id.
func Dial(ctx context.Context, relayURL string) (*WSClient, error) {
	wsURL, httpBase, err := relayURLs(relayURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(idWait))
	var hello Frame
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read relay id: %w", err)
	}
	if hello.Op != OpID || hello.Peer == "" {
		conn.Close()
		return nil, fmt.Errorf("unexpected relay greeting %q", hello.Op)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &WSClient{
		conn:     conn,
		id:       hello.Peer,
		httpBase: httpBase,
		http:     &http.Client{Timeout: 10 * time.Second},
		box:      newMailbox(),
		links:    make(map[string]bool),
	}
	go c.readLoop()
	return c, nil
}

// relayURLs derives the websocket URL and the HTTP API base from one address.
func relayURLs(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	wsURL := u.String()

	base := *u
	base.Scheme = strings.Replace(u.Scheme, "ws", "http", 1)
	base.Path = strings.TrimSuffix(u.Path, "/ws")
	base.RawQuery = ""
	return wsURL, strings.TrimSuffix(base.String(), "/"), nil
}

func (c *WSClient) ID() string { return c.id }

func (c *WSClient) Events() <-chan Event { return c.box.out }

func (c *WSClient) write(f Frame) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Op, err)
	}
	return nil
}

func (c *WSClient) Connect(_ context.Context, peerID string) error {
	return c.write(Frame{Op: OpConnect, Peer: peerID})
}

func (c *WSClient) Send(peerID string, data []byte) error {
	c.mu.Lock()
	linked := c.links[peerID]
	c.mu.Unlock()
	if !linked {
		return fmt.Errorf("send to %s: %w", peerID, ErrNotConnected)
	}
	return c.write(Frame{Op: OpData, Peer: peerID, Data: data})
}

func (c *WSClient) Disconnect(peerID string) error {
	return c.write(Frame{Op: OpClose, Peer: peerID})
}

type roomResponse struct {
	Code   string `json:"code"`
	PeerID string `json:"peerId"`
}

// Resolve asks the relay's room registry for the peer id behind code.
func (c *WSClient) Resolve(ctx context.Context, code string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpBase+"/api/rooms/"+url.PathEscape(code), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusBadRequest:
		return "", fmt.Errorf("resolve %s: %w", code, ErrInvalidJoinCode)
	default:
		return "", fmt.Errorf("resolve %s: unexpected status %d", code, resp.StatusCode)
	}

	var room roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return "", fmt.Errorf("resolve %s: %w", code, err)
	}
	if room.PeerID == "" {
		return "", fmt.Errorf("resolve %s: %w", code, ErrInvalidJoinCode)
	}
	return room.PeerID, nil
}

func (c *WSClient) readLoop() {
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.dropAll(err)
			return
		}

		switch f.Op {
		case OpOpen:
			c.mu.Lock()
			c.links[f.Peer] = true
			c.mu.Unlock()
			c.box.push(Event{Kind: EventOpen, Peer: f.Peer})
		case OpData:
			c.box.push(Event{Kind: EventData, Peer: f.Peer, Data: f.Data})
		case OpClose:
			c.mu.Lock()
			linked := c.links[f.Peer]
			delete(c.links, f.Peer)
			c.mu.Unlock()
			if linked {
				c.box.push(Event{Kind: EventClose, Peer: f.Peer})
			}
		case OpError:
			c.box.push(Event{Kind: EventError, Peer: f.Peer, Err: FrameError(f.Error)})
		}
	}
}

// dropAll reports every live link as closed after the relay connection ends.
func (c *WSClient) dropAll(cause error) {
	c.mu.Lock()
	wasClosed := c.closed
	peers := make([]string, 0, len(c.links))
	for p := range c.links {
		peers = append(peers, p)
	}
	c.links = make(map[string]bool)
	c.closed = true
	c.mu.Unlock()

	if wasClosed {
		return
	}
	for _, p := range peers {
		c.box.push(Event{Kind: EventClose, Peer: p})
	}
	c.box.push(Event{Kind: EventError, Err: errors.Join(ErrClosed, cause)})
}

func (c *WSClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.box.close()
		return c.conn.Close()
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.box.close()
	return err
}
