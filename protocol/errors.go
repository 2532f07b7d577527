package protocol

import "fmt"

// ErrMalformed is returned for unparseable frames and unrecognized message
// types. The transport logs and drops the frame; the connection stays open.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("protocol: malformed message: %s", e.Reason)
}
