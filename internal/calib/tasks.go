// internal/calib/tasks.go
package calib

import (
	"errors"
	"fmt"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/status"
)

// ErrPayload is returned when a block payload has the wrong length.
var ErrPayload = errors.New("calib: payload length mismatch")

type writeState uint8

const (
	wsFRAM writeState = iota
	wsErase
	wsErasePoll
	wsProgramPoll
	wsDone
)

// WriteTask stores calibration blocks: FRAM copies first, then the Flash
// sector. The Flash sector is block-protected after every write, so each
// write starts with the global unlock.
type WriteTask struct {
	// Context record: payload per block.
	Payload map[Block][]uint32

	blocks []Block
	sector flash.Addr

	x     bus.Exchanger
	state writeState
	erase flash.Erase
	prog  flash.Program
	page  []uint16
	err   error
}

// NewMeterWriteTask writes the AFE and both ADC blocks.
func NewMeterWriteTask(x bus.Exchanger, erasePolls, programPolls int) *WriteTask {
	return newWriteTask(x, MeterBlocks, layout.MeterCal.SlotAddr(0), erasePolls, programPolls)
}

// NewInjectionWriteTask writes the test-injection block.
func NewInjectionWriteTask(x bus.Exchanger, erasePolls, programPolls int) *WriteTask {
	return newWriteTask(x, []Block{Injection}, layout.InjectionCal.SlotAddr(0), erasePolls, programPolls)
}

func newWriteTask(x bus.Exchanger, bl []Block, sector flash.Addr, erasePolls, programPolls int) *WriteTask {
	t := &WriteTask{
		Payload: make(map[Block][]uint32),
		blocks:  bl,
		sector:  sector,
		x:       x,
	}
	t.erase.MaxPolls = erasePolls
	t.prog.MaxPolls = programPolls
	return t
}

func (t *WriteTask) Reset() {
	t.state = wsFRAM
	t.err = nil

	var page []byte
	for _, b := range t.blocks {
		p := t.Payload[b]
		if len(p) != b.Words() {
			t.err = fmt.Errorf("%w: %s has %d words, want %d", ErrPayload, b, len(p), b.Words())
			return
		}
		page = append(page, record.Encode(p)...)
	}
	t.page = bus.Words(page)
}

func (t *WriteTask) Step() (arbiter.Progress, error) {
	if t.err != nil {
		return t.fail(t.err)
	}

	switch t.state {
	case wsFRAM:
		for _, b := range t.blocks {
			if err := record.WriteAt(t.x, blocks[b].fram.Loc(), t.Payload[b]); err != nil {
				return t.fail(err)
			}
		}
		t.state = wsErase
		return arbiter.Pending, nil

	case wsErase:
		if err := flash.Unlock(t.x); err != nil {
			return t.fail(err)
		}
		t.erase.Start(t.sector, false)
		if done, err := t.erase.Step(t.x); done {
			return t.fail(err)
		}
		t.state = wsErasePoll
		return arbiter.Pending, nil

	case wsErasePoll:
		done, err := t.erase.Step(t.x)
		if err != nil {
			return t.fail(err)
		}
		if !done {
			return arbiter.Pending, nil
		}
		if err := t.prog.Start(t.sector, t.page); err != nil {
			return t.fail(err)
		}
		if done, err := t.prog.Step(t.x); done {
			return t.fail(err)
		}
		t.state = wsProgramPoll
		return arbiter.Pending, nil

	case wsProgramPoll:
		done, err := t.prog.Step(t.x)
		if err != nil {
			return t.fail(err)
		}
		if !done {
			return arbiter.Pending, nil
		}
		t.state = wsDone
		return arbiter.Done, flash.Protect(t.x)

	default:
		return arbiter.Done, nil
	}
}

func (t *WriteTask) fail(err error) (arbiter.Progress, error) {
	t.state = wsDone
	return arbiter.Done, err
}

// ReadTask loads one block: FRAM copy, then the Flash copy, then defaults.
// Falling back raises the block's FRAM fault; exhausting both raises its
// Flash fault.
type ReadTask struct {
	block Block

	// Results.
	Value  []uint32
	Source record.Source

	x     bus.Exchanger
	flags *status.Flags
}

func NewReadTask(x bus.Exchanger, flags *status.Flags, b Block) *ReadTask {
	return &ReadTask{block: b, x: x, flags: flags}
}

func (t *ReadTask) Reset() {
	t.Value = nil
	t.Source = record.SourceNone
}

func (t *ReadTask) Step() (arbiter.Progress, error) {
	if !t.block.valid() {
		return arbiter.Done, fmt.Errorf("calib: unknown block %s", t.block)
	}
	info := blocks[t.block]

	v, src, err := record.ReadRedundant(t.x, record.Redundant{
		Primary:      info.fram.Loc(),
		Secondary:    info.flash.Loc(),
		Words:        info.fram.Words,
		Flags:        t.flags,
		Fault:        info.flashFault,
		PrimaryFault: info.framFault,
	}, t.block.Default())
	if err != nil {
		return arbiter.Done, err
	}

	t.Value = v
	t.Source = src
	return arbiter.Done, nil
}

// CheckTask verifies the Flash copies of the meter blocks.
type CheckTask struct {
	// Valid is the result.
	Valid bool

	x     bus.Exchanger
	flags *status.Flags
}

func NewCheckTask(x bus.Exchanger, flags *status.Flags) *CheckTask {
	return &CheckTask{x: x, flags: flags}
}

func (t *CheckTask) Reset() { t.Valid = false }

func (t *CheckTask) Step() (arbiter.Progress, error) {
	t.Valid = true
	for _, b := range MeterBlocks {
		r := blocks[b].flash
		_, ok, err := record.ReadAt(t.x, r.Loc(), r.Words)
		if err != nil {
			return arbiter.Done, err
		}
		if !ok {
			t.Valid = false
		}
	}
	if !t.Valid {
		t.flags.Raise(status.FlagCalFlash)
	}
	return arbiter.Done, nil
}
