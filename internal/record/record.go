// internal/record/record.go
package record

import (
	"errors"
	"fmt"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/fram"
	"github.com/tamzrod/nvstore/internal/status"
)

// SecondaryOffset separates the two FRAM copies of a record.
const SecondaryOffset uint32 = 0x1A5F8

// ErrReadOnly is returned when a record write targets Flash.
// Flash copies are written page-wise by the calibration task.
var ErrReadOnly = errors.New("record: flash copies are read-only here")

// Loc is where one copy lives.
type Loc struct {
	Device bus.Device
	Addr   uint32
}

// Add offsets a location on the same device.
func (l Loc) Add(off uint32) Loc {
	return Loc{Device: l.Device, Addr: l.Addr + off}
}

func (l Loc) String() string {
	return fmt.Sprintf("%s@0x%05X", l.Device, l.Addr)
}

// Source tells which copy a read returned.
type Source uint8

const (
	SourceNone Source = iota
	SourcePrimary
	SourceSecondary
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	case SourceDefault:
		return "default"
	default:
		return "none"
	}
}

// ReadAt reads one copy of an n-word record. ok is false on a checksum or
// complement mismatch; err is reserved for transport failures.
func ReadAt(x bus.Exchanger, loc Loc, n int) (payload []uint32, ok bool, err error) {
	buf := make([]byte, Size(n))

	if loc.Device == bus.Flash {
		err = flash.Read(x, loc.Addr, buf)
	} else {
		err = fram.Read(x, loc.Device, loc.Addr, buf)
	}
	if err != nil {
		return nil, false, err
	}

	payload, ok = Decode(buf)
	return payload, ok, nil
}

// WriteAt writes one sealed copy to FRAM.
func WriteAt(x bus.Exchanger, loc Loc, payload []uint32) error {
	if loc.Device == bus.Flash {
		return ErrReadOnly
	}
	return fram.Write(x, loc.Device, loc.Addr, Encode(payload))
}

// Write stores payload at primary and then at primary+offset.
// The copies are written strictly in that order.
func Write(x bus.Exchanger, primary Loc, offset uint32, payload []uint32) error {
	if err := WriteAt(x, primary, payload); err != nil {
		return err
	}
	return WriteAt(x, primary.Add(offset), payload)
}

// Redundant describes a two-copy read.
type Redundant struct {
	Primary   Loc
	Secondary Loc
	Words     int

	// Flags receives Fault when both copies are bad, and PrimaryFault
	// (if non-zero) when only the primary is bad.
	Flags        *status.Flags
	Fault        status.Flag
	PrimaryFault status.Flag
}

// ReadRedundant returns the primary copy, else the secondary, else a copy
// of def. A double failure raises Fault on every call and counts it.
func ReadRedundant(x bus.Exchanger, r Redundant, def []uint32) ([]uint32, Source, error) {
	v, ok, err := ReadAt(x, r.Primary, r.Words)
	if err != nil {
		return nil, SourceNone, err
	}
	if ok {
		return v, SourcePrimary, nil
	}
	if r.PrimaryFault != 0 {
		r.Flags.Raise(r.PrimaryFault)
	}

	v, ok, err = ReadAt(x, r.Secondary, r.Words)
	if err != nil {
		return nil, SourceNone, err
	}
	if ok {
		return v, SourceSecondary, nil
	}

	r.Flags.Raise(r.Fault)
	r.Flags.CountCorruption()
	return append([]uint32(nil), def...), SourceDefault, nil
}
