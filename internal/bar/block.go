// Package bar hosts status-line blocks and speaks the i3bar JSON protocol.
//
// The package is the boundary between blocks and the host renderer: it owns
// the scheduler that polls blocks, the change-notification channel blocks
// push into, and the protocol writer. It renders nothing itself beyond the
// wire format.
package bar

import (
	"time"
)

// Task notifies the scheduler that a block has fresh state and should be
// re-polled now. Tasks are fire-and-forget and are consumed exactly once.
type Task struct {
	// BlockID identifies the block among all registered blocks.
	BlockID string

	// At is when the work became pending.
	At time.Time
}

// ClickEvent is a click forwarded by the host bar, in i3bar shape.
type ClickEvent struct {
	Name   string `json:"name"`
	Button int    `json:"button"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// Block is a single status-line unit.
//
// Update and Click are only ever called from the scheduler goroutine, so a
// block's widget needs no locking; anything a block's own goroutines share
// with Update must be synchronized by the block. Blocks that own background
// resources additionally implement io.Closer; the host closes them on
// shutdown.
type Block interface {
	// ID returns the block's process-unique identifier, stable for the
	// block's lifetime.
	ID() string

	// Update refreshes the block's widget from its current state. A non-nil
	// return value asks the scheduler to poll again after that delay; nil
	// means the block is event-driven and will push Tasks instead.
	Update() (*time.Duration, error)

	// View returns the block's widget, read-only for the caller.
	View() *TextWidget

	// Click handles a click event forwarded by the host bar.
	Click(ClickEvent) error
}
