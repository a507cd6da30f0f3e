package core

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// Frame is a raw encoded payload (one JSON text message).
type Frame []byte

// SessionID identifies one live signaling connection.
// It is the opaque connection handle the registry binds peer ids to.
type SessionID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend must never block: a full buffer returns an error and the frame is lost.
	TrySend(Frame) error
	Close()
}
