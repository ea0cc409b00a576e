package chat

import "github.com/raf-os/signalR-client/internal/bus"

// Event kinds published by the client. Together with the structs below they
// form the closed vocabulary consumers subscribe to.
const (
	KindConnectionStart  bus.Kind = "ConnectionStart"
	KindConnectionClosed bus.Kind = "ConnectionClosed"
	KindSuccessfulLogin  bus.Kind = "SuccessfulLogin"
	KindMessageReceived  bus.Kind = "MessageReceived"
	KindUserListUpdate   bus.Kind = "UserListUpdate"
)

// MessageKind distinguishes ordinary chat lines from system notices.
type MessageKind string

const (
	MessageUser   MessageKind = "user"
	MessageSystem MessageKind = "system"
)

// MessageTag marks how a system message should be presented. Ordinary chat
// lines leave it empty.
type MessageTag string

const (
	TagNone    MessageTag = ""
	TagSuccess MessageTag = "success"
	TagError   MessageTag = "error"
)

// ConnectionStart fires once the transport handshake succeeds.
type ConnectionStart struct{}

func (ConnectionStart) Kind() bus.Kind { return KindConnectionStart }

// ConnectionClosed fires when the transport drops, whether the server hung
// up, the network failed, or Disconnect closed it locally.
type ConnectionClosed struct {
	Err error
}

func (ConnectionClosed) Kind() bus.Kind { return KindConnectionClosed }

// SuccessfulLogin carries the authenticated session established by a login
// or a silent token re-auth.
type SuccessfulLogin struct {
	Session Session
}

func (SuccessfulLogin) Kind() bus.Kind { return KindSuccessfulLogin }

// MessageReceived is a chat line to display. Client- and server-side notices
// travel on the same kind as user chat, distinguished by Type and Tag, so
// consumers render everything from a single stream.
type MessageReceived struct {
	Sender string
	Body   string
	Type   MessageKind
	Tag    MessageTag
}

func (MessageReceived) Kind() bus.Kind { return KindMessageReceived }

// User is one entry of the server's online-user snapshot.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserListUpdate replaces the whole online-user roster. The server sends
// full snapshots, never diffs.
type UserListUpdate struct {
	Users []User
}

func (UserListUpdate) Kind() bus.Kind { return KindUserListUpdate }
