// internal/flash/ops.go
package flash

import (
	"errors"
	"fmt"

	"github.com/tamzrod/nvstore/internal/bus"
)

// Command set.
const (
	OpWriteEnable  = 0x06
	OpReadStatus   = 0x05
	OpRead         = 0x03
	OpPageProgram  = 0x02
	OpSectorErase  = 0x20
	OpBlockErase   = 0xD8
	OpGlobalUnlock = 0x98
	OpWriteBPR     = 0x42
)

// StatusBusy masks the two busy bits of the status register: BUSY (bit 7)
// and WIP (bit 0). Either one set means the part is busy.
const StatusBusy = 0x81

// Block protection register: 18 bytes, sent most significant first.
// Byte 1 bit 0 write-protects block 0, which holds the calibration sectors.
const (
	bprLen        = 18
	bprCalByte    = 1
	bprCalProtect = 0x01
)

// Default busy-poll limits, in status reads.
const (
	DefaultProgramPolls = 16
	DefaultErasePolls   = 400
)

var (
	// ErrBusyStall means the busy bit did not clear within the poll limit.
	ErrBusyStall = errors.New("flash: busy stall")

	// ErrPageSize means a program was not 1..MaxPageWords words.
	ErrPageSize = errors.New("flash: program must be 1..128 words")

	// ErrNotStarted means Step was called before Start.
	ErrNotStarted = errors.New("flash: operation not started")
)

// StallError reports an operation abandoned after Polls busy reads.
type StallError struct {
	Op    string
	Addr  Addr
	Polls int
}

func (e *StallError) Error() string {
	return fmt.Sprintf("flash: %s at %s still busy after %d polls", e.Op, e.Addr, e.Polls)
}

func (e *StallError) Is(target error) bool { return target == ErrBusyStall }

// Code is published as the last error code.
func (e *StallError) Code() uint16 { return 0x0010 }

// ReadStatus reads the status register. The value is never cached.
func ReadStatus(x bus.Exchanger) (byte, error) {
	in := make([]byte, 1)
	if err := x.Exchange(bus.Flash, &bus.Frame{Op: OpReadStatus, In: in}); err != nil {
		return 0, err
	}
	return in[0], nil
}

// Busy polls the busy bit once.
func Busy(x bus.Exchanger) (bool, error) {
	st, err := ReadStatus(x)
	if err != nil {
		return false, err
	}
	return st&StatusBusy != 0, nil
}

// Read reads len(out) bytes from byte address off.
func Read(x bus.Exchanger, off uint32, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	return x.Exchange(bus.Flash, &bus.Frame{Op: OpRead, Addr: off, HasAddr: true, In: out})
}

// ReadPage reads words from the start of page a.
func ReadPage(x bus.Exchanger, a Addr, words int) ([]uint16, error) {
	buf := make([]byte, words*2)
	if err := Read(x, a.Offset(), buf); err != nil {
		return nil, err
	}
	return bus.Words(buf), nil
}

// Unlock clears all block protection (global unlock).
func Unlock(x bus.Exchanger) error {
	if err := writeEnable(x); err != nil {
		return err
	}
	return x.Exchange(bus.Flash, &bus.Frame{Op: OpGlobalUnlock})
}

// Protect write-protects the calibration block.
func Protect(x bus.Exchanger) error {
	if err := writeEnable(x); err != nil {
		return err
	}
	bpr := make([]byte, bprLen)
	bpr[bprCalByte] = bprCalProtect
	return x.Exchange(bus.Flash, &bus.Frame{Op: OpWriteBPR, Out: bpr})
}

func writeEnable(x bus.Exchanger) error {
	return x.Exchange(bus.Flash, &bus.Frame{Op: OpWriteEnable})
}
