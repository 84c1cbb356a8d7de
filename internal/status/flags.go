// internal/status/flags.go
package status

import (
	"math"
	"sync/atomic"
)

// Flag is one sticky fault bit.
type Flag uint16

const (
	FlagCalFRAM       Flag = 0x0001 // meter calibration FRAM copy bad
	FlagCalFlash      Flag = 0x0002 // meter calibration Flash copy bad
	FlagInjFRAM       Flag = 0x0010 // test-injection FRAM copy bad
	FlagInjFlash      Flag = 0x0020 // test-injection Flash copy bad
	FlagRecordCorrupt Flag = 0x0040 // both copies of a record bad
	FlagDeviceStall   Flag = 0x0100 // busy bit never cleared
	FlagInvalidParam  Flag = 0x0200 // unsupported device or request selector
)

// Flags is the sticky fault word. Raising is idempotent and nothing lowers
// a bit for the life of the engine. The zero value is ready to use and a
// nil *Flags ignores writes.
type Flags struct {
	bits        atomic.Uint32
	corruptions atomic.Uint32
}

func (f *Flags) Raise(fl Flag) {
	if f != nil {
		f.bits.Or(uint32(fl))
	}
}

func (f *Flags) Has(fl Flag) bool {
	return f != nil && f.bits.Load()&uint32(fl) == uint32(fl)
}

func (f *Flags) Load() Flag {
	if f == nil {
		return 0
	}
	return Flag(f.bits.Load())
}

// CountCorruption records one double-copy failure.
func (f *Flags) CountCorruption() {
	if f != nil {
		f.corruptions.Add(1)
	}
}

// Corruptions returns the double-copy failure count.
func (f *Flags) Corruptions() uint32 {
	if f == nil {
		return 0
	}
	return f.corruptions.Load()
}

// sat16 clamps a counter into one register.
func sat16(v uint32) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
