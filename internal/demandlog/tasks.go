// internal/demandlog/tasks.go
package demandlog

import (
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
)

// WriteTask programs one entry. The page is always programmed whole; the
// half that belongs to the other entry is sent as 0xFF, which leaves NOR
// cells unchanged.
type WriteTask struct {
	// Context record.
	Index int
	Entry Entry

	x    bus.Exchanger
	prog flash.Program
	err  error
}

func NewWriteTask(x bus.Exchanger, maxPolls int) *WriteTask {
	t := &WriteTask{x: x}
	t.prog.MaxPolls = maxPolls
	return t
}

func (t *WriteTask) Reset() {
	page := make([]byte, flash.PageSize)
	for i := range page {
		page[i] = 0xFF
	}
	copy(page[(Wrap(t.Index)%EntriesPerPage)*EntryBytes:], t.Entry.Marshal())

	t.err = t.prog.Start(PageAddr(t.Index), bus.Words(page))
}

func (t *WriteTask) Step() (arbiter.Progress, error) {
	if t.err != nil {
		return arbiter.Done, t.err
	}
	done, err := t.prog.Step(t.x)
	if !done {
		return arbiter.Pending, nil
	}
	return arbiter.Done, err
}

// EraseTask erases the sector holding entry Index.
type EraseTask struct {
	// Context record.
	Index int

	x  bus.Exchanger
	op flash.Erase
}

func NewEraseTask(x bus.Exchanger, maxPolls int) *EraseTask {
	t := &EraseTask{x: x}
	t.op.MaxPolls = maxPolls
	return t
}

func (t *EraseTask) Reset() {
	t.op.Start(PageAddr(t.Index), false)
}

func (t *EraseTask) Step() (arbiter.Progress, error) {
	done, err := t.op.Step(t.x)
	if !done {
		return arbiter.Pending, nil
	}
	return arbiter.Done, err
}

// ReadTask reads entry Index for the test port.
type ReadTask struct {
	// Context record.
	Index int

	// Results.
	Entry Entry
	Valid bool

	x bus.Exchanger
}

func NewReadTask(x bus.Exchanger) *ReadTask {
	return &ReadTask{x: x}
}

func (t *ReadTask) Reset() {
	t.Entry = Entry{}
	t.Valid = false
}

func (t *ReadTask) Step() (arbiter.Progress, error) {
	buf := make([]byte, EntryBytes)
	if err := flash.Read(t.x, Offset(t.Index), buf); err != nil {
		return arbiter.Done, err
	}
	t.Entry, t.Valid = UnmarshalEntry(buf)
	return arbiter.Done, nil
}
