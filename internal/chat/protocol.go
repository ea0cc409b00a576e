// Package chat implements the realtime session client: it owns a single
// persistent connection to the chat server, runs the connect/auth state
// machine, and republishes every inbound server event on its bus.
package chat

import "encoding/json"

// MessageType identifies a wire frame. The names are the stable contract
// shared with the server.
type MessageType string

const (
	// Client → server invocations.
	MsgRegister   MessageType = "Register"
	MsgLogIn      MessageType = "LogIn"
	MsgReLogIn    MessageType = "ReLogIn"
	MsgNewMessage MessageType = "NewMessage"
	MsgLogOut     MessageType = "LogOut"

	// Server → client.
	MsgReceiveMessage   MessageType = "ReceiveMessage"
	MsgUpdateClientList MessageType = "UpdateClientList"
	MsgResponse         MessageType = "Response"
)

// Frame is the envelope for all traffic on the socket. ID correlates an
// invocation with its Response frame; pushes and one-way sends leave it
// empty.
type Frame struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the structured result of a remote invocation.
type Response struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// AuthMetadata is the metadata block of a successful LogIn or ReLogIn
// response. Key casing follows the server.
type AuthMetadata struct {
	Username     string `json:"Username"`
	Token        string `json:"Token"`
	ConnectionID string `json:"ConnectionId"`
	Auth         Level  `json:"auth"`
}

// CredentialsPayload carries Register and LogIn arguments.
type CredentialsPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ReLogInPayload carries the persisted bearer token for silent re-auth.
type ReLogInPayload struct {
	Token string `json:"token"`
}

// NewMessagePayload is an outbound chat line.
type NewMessagePayload struct {
	Sender string `json:"sender"`
	Body   string `json:"body"`
}

// ReceiveMessagePayload is an inbound chat line. Kind is "user" or "system";
// servers that omit it mean "user".
type ReceiveMessagePayload struct {
	Username string      `json:"username"`
	Body     string      `json:"body"`
	Kind     MessageKind `json:"kind,omitempty"`
	Tag      MessageTag  `json:"tag,omitempty"`
}
