package chat

// Level is the ordered authorization rank carried by a session. The client
// transports it opaquely; enforcement is the server's job.
type Level int

const (
	LevelGuest Level = iota
	LevelUser
	LevelOperator
	LevelAdmin
)

func (l Level) String() string {
	switch l {
	case LevelGuest:
		return "guest"
	case LevelUser:
		return "user"
	case LevelOperator:
		return "operator"
	case LevelAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// AtLeast reports whether l grants the given rank.
func (l Level) AtLeast(required Level) bool { return l >= required }

// Session is an authenticated identity bound to one live connection. It is
// created by login or token re-auth and destroyed by logout, disconnect, or
// connection loss.
type Session struct {
	Username     string
	Token        string
	ConnectionID string
	Auth         Level
}
