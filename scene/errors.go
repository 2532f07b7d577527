package scene

import "fmt"

// ErrElementNotFound is returned when an update or delete targets an element
// id that is not present in the room's snapshot. The snapshot is left
// unchanged; elements are never created implicitly by a patch.
type ErrElementNotFound struct {
	Room string
	ID   string
}

func (e *ErrElementNotFound) Error() string {
	return fmt.Sprintf("scene: element not found: %s (room %s)", e.ID, e.Room)
}
