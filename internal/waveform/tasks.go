// internal/waveform/tasks.go
package waveform

import (
	"errors"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
)

// EraseTask erases one of the two blocks of a capture slot.
type EraseTask struct {
	c      *Capture
	second bool
	x      bus.Exchanger
	op     flash.Erase
}

// NewEraseTask binds an erase of block 0 or (second) block 1 of c's slot.
func NewEraseTask(x bus.Exchanger, c *Capture, second bool, maxPolls int) *EraseTask {
	t := &EraseTask{c: c, second: second, x: x}
	t.op.MaxPolls = maxPolls
	return t
}

func (t *EraseTask) Reset() {
	a := t.c.Base()
	if t.second {
		a = a.Add(flash.SectorsPerBlock * flash.PagesPerSector)
	}
	t.op.Start(a, true)
}

func (t *EraseTask) Step() (arbiter.Progress, error) {
	done, err := t.op.Step(t.x)
	if !done {
		return arbiter.Pending, nil
	}
	return arbiter.Done, err
}

// ErrReadLength is returned for a read of zero or more than CaptureSets sets.
var ErrReadLength = errors.New("waveform: read length out of range")

// ReadTask reads a stored capture back, one page per step.
type ReadTask struct {
	// Context record.
	First flash.Addr
	Sets  int

	// Out holds the sets read; complete after the acknowledge.
	Out []SampleSet

	x   bus.Exchanger
	cur flash.Addr
}

func NewReadTask(x bus.Exchanger) *ReadTask {
	return &ReadTask{x: x}
}

func (t *ReadTask) Reset() {
	t.Out = nil
	t.cur = t.First
}

func (t *ReadTask) Step() (arbiter.Progress, error) {
	if t.Sets <= 0 || t.Sets > CaptureSets {
		return arbiter.Done, ErrReadLength
	}

	n := min(SetsPerPage, t.Sets-len(t.Out))
	words, err := flash.ReadPage(t.x, t.cur, n*SetWords)
	if err != nil {
		return arbiter.Done, err
	}

	t.Out = append(t.Out, UnmarshalSets(words)...)
	t.cur = t.cur.Next()

	if len(t.Out) >= t.Sets {
		return arbiter.Done, nil
	}
	return arbiter.Pending, nil
}
