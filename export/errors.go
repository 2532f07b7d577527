package export

import "fmt"

// ErrNoPeers is returned when an export is requested on a room with no
// connected clients; nobody could possibly answer, so the request fails
// immediately and nothing is registered.
type ErrNoPeers struct {
	Room string
}

func (e *ErrNoPeers) Error() string {
	return fmt.Sprintf("export: no connected clients in room %s", e.Room)
}

// ErrTimeout is returned when no matching response arrived in the window.
type ErrTimeout struct {
	RequestID string
	Room      string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("export: request %s timed out (room %s)", e.RequestID, e.Room)
}

// ErrCancelled is returned for exports rejected by shutdown.
type ErrCancelled struct {
	RequestID string
}

func (e *ErrCancelled) Error() string {
	return fmt.Sprintf("export: request %s cancelled by shutdown", e.RequestID)
}
