package common

import "errors"

// ErrActionPaused is returned when an operator paused the requested action.
var ErrActionPaused = errors.New("action paused")

// PauseView exposes per-action pause switches.
type PauseView interface {
	IsPaused(action string) bool
}

// Guard fails with ErrActionPaused when the action is paused. A nil view or an
// empty action never blocks.
func Guard(p PauseView, action string) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}
