package ws

import "fmt"

// ErrSendBufferFull reports a frame dropped because the client's outbound
// queue was saturated.
type ErrSendBufferFull struct {
	Conn string
}

func (e *ErrSendBufferFull) Error() string {
	return fmt.Sprintf("ws: send buffer full for connection %s", e.Conn)
}

// ErrConnClosed reports a send attempted after the connection shut down.
type ErrConnClosed struct {
	Conn string
}

func (e *ErrConnClosed) Error() string {
	return fmt.Sprintf("ws: connection %s is closed", e.Conn)
}
