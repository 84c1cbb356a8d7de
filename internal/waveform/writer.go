// internal/waveform/writer.go
package waveform

import (
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
)

type writePhase uint8

const (
	writeStart writePhase = iota
	writeWait
	writePoll
	writeDone
)

// WriteTask streams a capture from the ring into Flash, one page per step:
// each step polls the page in flight and, once it has committed, programs
// the next one. A page is only programmed once its last set has been
// sampled; until then the task waits without touching the bus.
type WriteTask struct {
	c     *Capture
	ring  *Ring
	x     bus.Exchanger
	abort func() bool

	prog  flash.Program
	phase writePhase

	pos      int64 // production number of the next set; negative pads
	inFlight int   // sets in the page being programmed
}

// NewWriteTask binds a writer to its capture. abort is polled after each
// committed page; nil never aborts.
func NewWriteTask(x bus.Exchanger, c *Capture, ring *Ring, abort func() bool, maxPolls int) *WriteTask {
	if abort == nil {
		abort = func() bool { return false }
	}
	t := &WriteTask{c: c, ring: ring, x: x, abort: abort}
	t.prog.MaxPolls = maxPolls
	return t
}

func (t *WriteTask) Reset() { t.phase = writeStart }

func (t *WriteTask) Step() (arbiter.Progress, error) {
	switch t.phase {
	case writeStart:
		t.pos = t.ring.Position(t.c.Start)
		t.c.committed.Store(0)
		t.c.cursor = t.c.Base()
		t.c.setState(StateWriting)

		return t.program()

	case writeWait:
		if t.abort() {
			return t.finish(StateAborted, nil)
		}
		return t.program()

	case writePoll:
		done, err := t.prog.Step(t.x)
		if err != nil {
			return t.finish(StateFailed, err)
		}
		if !done {
			return arbiter.Pending, nil
		}

		n := t.c.committed.Add(int32(t.inFlight))
		t.c.cursor = t.c.cursor.Next()

		if n >= CaptureSets {
			return t.finish(StateComplete, nil)
		}
		if t.abort() {
			return t.finish(StateAborted, nil)
		}
		return t.program()

	default:
		return arbiter.Done, nil
	}
}

// program builds the next page and issues it.
func (t *WriteTask) program() (arbiter.Progress, error) {
	n := min(SetsPerPage, CaptureSets-t.c.Committed())
	if t.pos+int64(n) > int64(t.ring.Produced()) {
		t.phase = writeWait
		return arbiter.Pending, nil
	}
	t.inFlight = n

	if err := t.prog.Start(t.c.cursor, MarshalSets(t.take(n))); err != nil {
		return t.finish(StateFailed, err)
	}
	if done, err := t.prog.Step(t.x); done {
		return t.finish(StateFailed, err)
	}

	t.phase = writePoll
	return arbiter.Pending, nil
}

// take pulls n sets, zero-padding history that predates the first push.
func (t *WriteTask) take(n int) []SampleSet {
	sets := make([]SampleSet, n)
	for i := range sets {
		if t.pos >= 0 {
			sets[i] = t.ring.At(int(t.pos % RingSize))
		}
		t.pos++
	}
	return sets
}

func (t *WriteTask) finish(s State, err error) (arbiter.Progress, error) {
	t.c.setState(s)
	t.phase = writeDone
	return arbiter.Done, err
}
