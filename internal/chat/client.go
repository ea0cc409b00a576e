package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raf-os/signalR-client/internal/bus"
)

// ConnState tracks the connection lifecycle. Transitions:
// Idle → Connecting → Connected → Closed, with Closed → Connecting on a
// later Connect call. There is no automatic retry; every reconnection is
// caller-initiated.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyConnected = errors.New("chat: connect already in progress or established")
	ErrNotConnected     = errors.New("chat: not connected")
	ErrEmptyMessage     = errors.New("chat: empty message body")
	ErrNotLoggedIn      = errors.New("chat: no active session")
	ErrConnectionLost   = errors.New("chat: connection lost")

	errNoStoredToken = errors.New("chat: no stored token")
)

// TokenStore is the durable credential persistence the client writes
// through. The client is the only writer; reads are expected to be cheap
// and synchronous.
type TokenStore interface {
	Token() (string, bool)
	SetToken(token string) error
	ClearToken() error
}

// Options tune a Client. Zero values fall back to defaults.
type Options struct {
	// Dialer establishes the transport. Defaults to DialWebSocket.
	Dialer Dialer
	// InvokeTimeout bounds how long a remote invocation waits for its
	// Response frame.
	InvokeTimeout time.Duration
	// PingInterval sets the keepalive cadence per live connection.
	PingInterval time.Duration
}

// Client owns a single persistent bidirectional connection to the chat
// server. It runs the connect/auth state machine, serialises outbound
// actions against connection state, and republishes every inbound server
// event on its bus. One Client drives one connection at a time.
type Client struct {
	url    string
	events *bus.Bus
	tokens TokenStore

	dialer        Dialer
	invokeTimeout time.Duration
	pingInterval  time.Duration

	mu       sync.Mutex
	state    ConnState
	conn     Conn
	session  *Session
	pending  map[string]chan Response
	pingStop context.CancelFunc
}

// New creates a client for the given websocket URL. The bus carries every
// event the client emits; tokens persists the bearer token across runs.
func New(url string, events *bus.Bus, tokens TokenStore, opts Options) *Client {
	c := &Client{
		url:           url,
		events:        events,
		tokens:        tokens,
		dialer:        opts.Dialer,
		invokeTimeout: opts.InvokeTimeout,
		pingInterval:  opts.PingInterval,
	}
	if c.dialer == nil {
		c.dialer = DialWebSocket
	}
	if c.invokeTimeout <= 0 {
		c.invokeTimeout = defaultInvokeTimeout
	}
	if c.pingInterval <= 0 {
		c.pingInterval = defaultPingInterval
	}
	return c
}

// Events returns the bus the client publishes on.
func (c *Client) Events() *bus.Bus { return c.events }

// Connect establishes the transport and starts the inbound dispatch loop.
// It fails fast with ErrAlreadyConnected while a handshake is pending or a
// connection is live, so overlapping calls create at most one transport.
// After a successful handshake a silent token re-auth runs in the
// background without blocking the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dialer(ctx, c.url)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		c.systemMessage(fmt.Sprintf("Could not connect to server: %v", err), TagError)
		return fmt.Errorf("chat: connect %s: %w", c.url, err)
	}

	pingCtx, pingStop := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.pending = make(map[string]chan Response)
	c.pingStop = pingStop
	c.mu.Unlock()

	go c.dispatchLoop(conn)
	go c.pingLoop(pingCtx, conn)

	c.events.Emit(ConnectionStart{})
	c.systemMessage("Connected to server.", TagNone)

	go func() {
		err := c.reauthenticate(context.Background())
		if err != nil && !errors.Is(err, errNoStoredToken) {
			// Expected for stale tokens; operator log only, never a bus event.
			log.Printf("chat: silent re-auth declined: %v", err)
		}
	}()

	return nil
}

// dispatchLoop is the single consumer of inbound transport events for one
// connection. Frames flow through a mailbox in arrival order, so bus
// subscribers observe events exactly as the transport delivered them. When
// the read side fails the loop drains the mailbox and runs close handling.
func (c *Client) dispatchLoop(conn Conn) {
	inbox := make(chan Frame, 16)
	readErr := make(chan error, 1)

	go func() {
		defer close(inbox)
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var f Frame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Printf("chat: dropping malformed frame: %v", err)
				continue
			}
			inbox <- f
		}
	}()

	for f := range inbox {
		c.dispatch(f)
	}
	c.handleClose(conn, <-readErr)
}

func (c *Client) dispatch(f Frame) {
	switch f.Type {
	case MsgResponse:
		c.resolve(f)
	case MsgReceiveMessage:
		var p ReceiveMessagePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			log.Printf("chat: bad %s payload: %v", f.Type, err)
			return
		}
		kind := p.Kind
		if kind == "" {
			kind = MessageUser
		}
		c.events.Emit(MessageReceived{Sender: p.Username, Body: p.Body, Type: kind, Tag: p.Tag})
	case MsgUpdateClientList:
		var users []User
		if err := json.Unmarshal(f.Payload, &users); err != nil {
			log.Printf("chat: bad %s payload: %v", f.Type, err)
			return
		}
		c.events.Emit(UserListUpdate{Users: users})
	default:
		log.Printf("chat: unknown frame type %q", f.Type)
	}
}

// resolve hands a Response frame to the invocation that is waiting on it.
// A malformed body still resolves the invocation, as a failure, rather than
// leaving the caller to time out.
func (c *Client) resolve(f Frame) {
	var resp Response
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &resp); err != nil {
			log.Printf("chat: malformed response payload for %s: %v", f.ID, err)
			resp = Response{}
		}
	}

	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		log.Printf("chat: response for unknown invocation %q", f.ID)
		return
	}
	ch <- resp
}

// handleClose runs once per transport when its read side fails, whether the
// server dropped us, the network died, or Disconnect closed the socket
// locally. It destroys the session, fails every in-flight invocation, and
// announces the closure.
func (c *Client) handleClose(conn Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.state = StateClosed
	c.session = nil
	if c.pingStop != nil {
		c.pingStop()
		c.pingStop = nil
	}
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	conn.Close()

	// In-flight invocations resolve to failure rather than hanging.
	for _, ch := range pending {
		close(ch)
	}

	c.events.Emit(ConnectionClosed{Err: err})
	c.systemMessage("Connection to server closed.", TagNone)
}

// pingLoop keeps one connection alive. It exits when the connection is
// replaced or its writes start failing; read-side timeouts then surface
// through the dispatch loop.
func (c *Client) pingLoop(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()
			if current != conn {
				return
			}
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

// invoke sends an ID-correlated frame and waits for the server's Response.
// It fails fast when no connection is live and resolves to an error, never
// a hang, if the transport drops mid-flight.
func (c *Client) invoke(ctx context.Context, typ MessageType, payload any) (Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("chat: marshal %s: %w", typ, err)
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	conn := c.conn
	id := uuid.NewString()
	ch := make(chan Response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	frame, err := json.Marshal(Frame{Type: typ, ID: id, Payload: data})
	if err != nil {
		c.forget(id)
		return Response{}, fmt.Errorf("chat: marshal %s frame: %w", typ, err)
	}
	if err := conn.WriteMessage(frame); err != nil {
		c.forget(id)
		return Response{}, fmt.Errorf("chat: send %s: %w", typ, err)
	}

	timer := time.NewTimer(c.invokeTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, ErrConnectionLost
		}
		return resp, nil
	case <-timer.C:
		c.forget(id)
		return Response{}, fmt.Errorf("chat: %s timed out after %v", typ, c.invokeTimeout)
	case <-ctx.Done():
		c.forget(id)
		return Response{}, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

// Register creates an account. Registration does not log in; the caller
// follows up with Login.
func (c *Client) Register(ctx context.Context, username, password string) error {
	resp, err := c.invoke(ctx, MsgRegister, CredentialsPayload{Username: username, Password: password})
	if err != nil {
		c.systemMessage("Could not register account.", TagError)
		return err
	}
	if !resp.Success {
		reason := fallback(resp.Message, "Could not register account.")
		c.systemMessage(reason, TagError)
		return fmt.Errorf("chat: register rejected: %s", reason)
	}
	c.systemMessage(fallback(resp.Message, "Account created. You can now log in."), TagSuccess)
	return nil
}

// Login authenticates with username and password. On success the bearer
// token is persisted and SuccessfulLogin fires; on failure a system error
// message carries the server's reason.
func (c *Client) Login(ctx context.Context, username, password string) error {
	resp, err := c.invoke(ctx, MsgLogIn, CredentialsPayload{Username: username, Password: password})
	if err != nil {
		c.systemMessage("Login failed.", TagError)
		return err
	}
	if !resp.Success {
		reason := fallback(resp.Message, "Login failed.")
		c.systemMessage(reason, TagError)
		return fmt.Errorf("chat: login rejected: %s", reason)
	}
	if err := c.establishSession(resp); err != nil {
		c.systemMessage("Login failed.", TagError)
		return err
	}
	return nil
}

// reauthenticate restores a previous session from the persisted bearer
// token. It runs once per successful Connect, in the background. Absent and
// rejected tokens both fail silently: a first visit and an expired token
// simply fall through to a manual login, and the stored token is left in
// place in case the server accepts it again later.
func (c *Client) reauthenticate(ctx context.Context) error {
	if c.tokens == nil {
		return errNoStoredToken
	}
	token, ok := c.tokens.Token()
	if !ok || token == "" {
		return errNoStoredToken
	}
	resp, err := c.invoke(ctx, MsgReLogIn, ReLogInPayload{Token: token})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("chat: token rejected: %s", fallback(resp.Message, "no reason given"))
	}
	return c.establishSession(resp)
}

// establishSession parses auth metadata, persists the bearer token and
// announces the new session.
func (c *Client) establishSession(resp Response) error {
	var meta AuthMetadata
	if err := json.Unmarshal(resp.Metadata, &meta); err != nil {
		return fmt.Errorf("chat: malformed auth metadata: %w", err)
	}
	if meta.Token == "" || meta.Username == "" {
		return errors.New("chat: incomplete auth metadata")
	}

	if c.tokens != nil {
		// The server may rotate the token on every login.
		if err := c.tokens.SetToken(meta.Token); err != nil {
			log.Printf("chat: persisting token: %v", err)
		}
	}

	sess := Session{
		Username:     meta.Username,
		Token:        meta.Token,
		ConnectionID: meta.ConnectionID,
		Auth:         meta.Auth,
	}
	c.mu.Lock()
	c.session = &sess
	c.mu.Unlock()

	c.events.Emit(SuccessfulLogin{Session: sess})
	return nil
}

// SendMessage broadcasts a chat line as a one-way send and echoes it locally
// right away, so the sender's own view never waits a round trip. Bodies that
// trim to nothing are rejected before any network traffic, with no event:
// that is an input guard, not a system condition.
func (c *Client) SendMessage(senderTag, body string) error {
	if strings.TrimSpace(body) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	payload, err := json.Marshal(NewMessagePayload{Sender: senderTag, Body: body})
	if err != nil {
		return fmt.Errorf("chat: marshal message: %w", err)
	}
	frame, err := json.Marshal(Frame{Type: MsgNewMessage, Payload: payload})
	if err != nil {
		return fmt.Errorf("chat: marshal message frame: %w", err)
	}
	if err := conn.WriteMessage(frame); err != nil {
		c.systemMessage("Could not send message.", TagError)
		return fmt.Errorf("chat: send message: %w", err)
	}

	c.events.Emit(MessageReceived{Sender: senderTag, Body: body, Type: MessageUser})
	return nil
}

// Logout drops the local session and clears the persisted token so the next
// connect does not silently resurrect it. The server is notified with a
// best-effort one-way frame; revoking the session on its side is the
// server's contract, not ours.
func (c *Client) Logout() error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	c.session = nil
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if c.tokens != nil {
		if err := c.tokens.ClearToken(); err != nil {
			log.Printf("chat: clearing token: %v", err)
		}
	}

	if connected && conn != nil {
		frame, _ := json.Marshal(Frame{Type: MsgLogOut})
		if err := conn.WriteMessage(frame); err != nil {
			log.Printf("chat: logout notice: %v", err)
		}
	}
	return nil
}

// Disconnect tears the transport down regardless of current state and is
// safe to call any number of times. Close handling runs through the same
// path as a server-initiated drop, so consumers still observe
// ConnectionClosed exactly once per live connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		// Unblocks the read loop; handleClose does the rest.
		conn.Close()
	}
}

// IsConnected reports whether a live, handshaken transport exists right
// now. A pending handshake does not count.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the authenticated identity, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// systemMessage routes a client-side notice through the same channel as
// ordinary chat.
func (c *Client) systemMessage(body string, tag MessageTag) {
	c.events.Emit(MessageReceived{Sender: "system", Body: body, Type: MessageSystem, Tag: tag})
}

func fallback(msg, def string) string {
	if msg != "" {
		return msg
	}
	return def
}
