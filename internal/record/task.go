// internal/record/task.go
package record

import (
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/status"
)

type writePhase uint8

const (
	phaseIdle writePhase = iota
	phasePrimary
	phaseSecondary
	phaseDone
)

// WriteTask writes a redundant record one copy per step, so a power loss
// between steps leaves the secondary copy untouched.
type WriteTask struct {
	// Context record, populated before the request is raised.
	Primary Loc
	Offset  uint32
	Payload []uint32

	x     bus.Exchanger
	phase writePhase
}

// NewWriteTask binds a write task to the bus. Offset defaults to
// SecondaryOffset.
func NewWriteTask(x bus.Exchanger) *WriteTask {
	return &WriteTask{x: x, Offset: SecondaryOffset}
}

func (t *WriteTask) Reset() { t.phase = phasePrimary }

func (t *WriteTask) Step() (arbiter.Progress, error) {
	switch t.phase {
	case phasePrimary:
		if err := WriteAt(t.x, t.Primary, t.Payload); err != nil {
			t.phase = phaseDone
			return arbiter.Done, err
		}
		t.phase = phaseSecondary
		return arbiter.Pending, nil

	case phaseSecondary:
		t.phase = phaseDone
		return arbiter.Done, WriteAt(t.x, t.Primary.Add(t.Offset), t.Payload)

	default:
		return arbiter.Done, nil
	}
}

// ReadTask reads a redundant record in one step.
type ReadTask struct {
	// Context record.
	Primary Loc
	Offset  uint32
	Words   int
	Default []uint32

	// Results, valid after the acknowledge.
	Value  []uint32
	Source Source

	x     bus.Exchanger
	flags *status.Flags
}

// NewReadTask binds a read task to the bus and the fault flags.
func NewReadTask(x bus.Exchanger, flags *status.Flags) *ReadTask {
	return &ReadTask{x: x, flags: flags, Offset: SecondaryOffset}
}

func (t *ReadTask) Reset() {
	t.Value = nil
	t.Source = SourceNone
}

func (t *ReadTask) Step() (arbiter.Progress, error) {
	v, src, err := ReadRedundant(t.x, Redundant{
		Primary:   t.Primary,
		Secondary: t.Primary.Add(t.Offset),
		Words:     t.Words,
		Flags:     t.flags,
		Fault:     status.FlagRecordCorrupt,
	}, t.Default)
	if err != nil {
		return arbiter.Done, err
	}
	t.Value = v
	t.Source = src
	return arbiter.Done, nil
}
