// internal/waveform/capture.go
package waveform

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/layout"
)

// Capture geometry.
const (
	SetsPerPage  = 7
	CaptureSets  = 2880 // 36 line cycles
	CapturePages = (CaptureSets + SetsPerPage - 1) / SetsPerPage
)

// Kind is the capture type. Its order is its precedence.
type Kind uint8

const (
	Trip Kind = iota
	Alarm
	Extended

	NumCaptureKinds
)

func (k Kind) String() string {
	switch k {
	case Trip:
		return "trip"
	case Alarm:
		return "alarm"
	case Extended:
		return "extended"
	default:
		return fmt.Sprintf("capture(%d)", uint8(k))
	}
}

// Region is the Flash pool of the kind.
func (k Kind) Region() layout.Region {
	switch k {
	case Trip:
		return layout.TripWaveforms
	case Alarm:
		return layout.AlarmWaveforms
	default:
		return layout.ExtWaveforms
	}
}

// State is where a capture context is in its life.
type State uint8

const (
	StateIdle State = iota
	StateArmed
	StateWriting
	StateComplete
	StateAborted
	StateSuperseded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateWriting:
		return "writing"
	case StateComplete:
		return "complete"
	case StateAborted:
		return "aborted"
	case StateSuperseded:
		return "superseded"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Finished reports a state no task will move out of.
func (s State) Finished() bool {
	return s >= StateComplete
}

// ErrBadSlot is returned when arming outside the kind's pool.
var ErrBadSlot = errors.New("waveform: capture slot out of range")

// Capture is the context record of one capture kind. The collaborator sets
// it with Arm; the engine tasks own it until the acknowledge.
type Capture struct {
	kind Kind

	Slot  int
	Start int
	EID   uint32
	TS    time.Time // trigger time, taken at arm

	state     atomic.Uint32
	committed atomic.Int32
	cursor    flash.Addr
}

func NewCapture(kind Kind) *Capture {
	return &Capture{kind: kind}
}

func (c *Capture) Kind() Kind { return c.kind }

// Arm populates the context for a new capture.
func (c *Capture) Arm(slot, start int, eid uint32, ts time.Time) error {
	if slot < 0 || slot >= c.kind.Region().Slots {
		return fmt.Errorf("%w: %s slot %d", ErrBadSlot, c.kind, slot)
	}
	if start < 0 || start >= RingSize {
		return fmt.Errorf("waveform: start index %d outside ring", start)
	}
	c.Slot = slot
	c.Start = start
	c.EID = eid
	c.TS = ts
	c.committed.Store(0)
	c.cursor = c.Base()
	c.setState(StateArmed)
	return nil
}

// Base is page 0 of the capture's slot.
func (c *Capture) Base() flash.Addr {
	return c.kind.Region().SlotAddr(c.Slot)
}

// State is safe to read from any goroutine.
func (c *Capture) State() State { return State(c.state.Load()) }

// Committed is the number of sample-sets programmed so far.
func (c *Capture) Committed() int { return int(c.committed.Load()) }

// Cursor is the next page to program.
func (c *Capture) Cursor() flash.Addr { return c.cursor }

// Header summarizes the capture as it stands.
func (c *Capture) Header() Header {
	return Header{Sets: c.Committed(), EID: c.EID, TS: c.TS}
}

// Supersede retires an armed capture that will not be written.
func (c *Capture) Supersede() {
	if !c.State().Finished() {
		c.setState(StateSuperseded)
	}
}

func (c *Capture) setState(s State) { c.state.Store(uint32(s)) }
