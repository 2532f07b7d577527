package history

import "fmt"

// ErrNothingToUndo is returned when Undo is called on an empty undo stack.
// No state is changed.
type ErrNothingToUndo struct {
	Room string
}

func (e *ErrNothingToUndo) Error() string {
	return fmt.Sprintf("history: nothing to undo (room %s)", e.Room)
}

// ErrNothingToRedo is returned when Redo is called on an empty redo stack.
type ErrNothingToRedo struct {
	Room string
}

func (e *ErrNothingToRedo) Error() string {
	return fmt.Sprintf("history: nothing to redo (room %s)", e.Room)
}
