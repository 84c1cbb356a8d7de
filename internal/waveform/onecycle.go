// internal/waveform/onecycle.go
package waveform

import (
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/fram"
	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
)

// OneCycleValues is the number of RMS values in a one-cycle log entry.
const OneCycleValues = 11

// oneCycleBytes is the stored entry size: sequence word plus the values.
const oneCycleBytes = (1 + OneCycleValues) * 4

// OneCycleEntry is one line cycle of RMS values for the extended capture.
//
// Stored layout, 12 words: Seq, then Ia Ib Ic In Igsrc Igres Van Vbn Vcn
// Vab Vbc as float32; every word low half first.
type OneCycleEntry struct {
	Seq    uint32
	Values [OneCycleValues]float32
}

func (e OneCycleEntry) words() []uint32 {
	return append([]uint32{e.Seq}, record.Float32Words(e.Values[:]...)...)
}

func oneCycleAddr(seq uint32) uint32 {
	return layout.OneCycleBase + (seq%layout.OneCycleEntries)*oneCycleBytes
}

// OneCycleTask writes one entry into the extended-capture FRAM ring.
type OneCycleTask struct {
	// Context record.
	Entry OneCycleEntry

	x bus.Exchanger
}

func NewOneCycleTask(x bus.Exchanger) *OneCycleTask {
	return &OneCycleTask{x: x}
}

func (t *OneCycleTask) Reset() {}

func (t *OneCycleTask) Step() (arbiter.Progress, error) {
	data := record.Marshal(t.Entry.words())
	return arbiter.Done, fram.Write(t.x, bus.ExtFRAM, oneCycleAddr(t.Entry.Seq), data)
}

// ReadOneCycle reads the ring slot that entry seq maps to.
func ReadOneCycle(x bus.Exchanger, seq uint32) (OneCycleEntry, error) {
	buf := make([]byte, oneCycleBytes)
	if err := fram.Read(x, bus.ExtFRAM, oneCycleAddr(seq), buf); err != nil {
		return OneCycleEntry{}, err
	}

	w := record.Unmarshal(buf)
	e := OneCycleEntry{Seq: w[0]}
	copy(e.Values[:], record.WordsFloat32(w[1:]))
	return e, nil
}
