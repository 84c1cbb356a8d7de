// internal/simdev/flash.go
package simdev

// SST26VF064B command subset.
const (
	flashWREN  = 0x06
	flashWRDI  = 0x04
	flashRDSR  = 0x05
	flashREAD  = 0x03
	flashPP    = 0x02
	flashSE    = 0x20
	flashBE    = 0xD8
	flashULBPR = 0x98
	flashWBPR  = 0x42
)

const (
	flashPage   = 256
	flashSector = 4096
	flashBlock  = 65536

	// Block 0 (first two sectors) carries the calibration constants and is
	// the only block whose write protection is modelled.
	protectedEnd = 2 * flashSector

	statusBusy = 0x81
	statusWEL  = 0x02
)

// FlashOptions configure a simulated Flash device.
type FlashOptions struct {
	Size int

	// ProgramPolls and ErasePolls are the number of status reads that report
	// busy after a page program or an erase.
	ProgramPolls int
	ErasePolls   int

	// Protected starts with the calibration block write protected.
	Protected bool
}

// Flash simulates a serial NOR Flash: erased state is 0xFF, programming can
// only clear bits, and a write to a protected block is ignored.
type Flash struct {
	opts FlashOptions

	mem       []byte
	wel       bool
	busy      int
	stuck     bool
	protected bool

	programs int
	erases   int
	rejected int
}

// NewFlash returns an erased device.
func NewFlash(opts FlashOptions) *Flash {
	if opts.Size <= 0 {
		opts.Size = 8 << 20
	}
	mem := make([]byte, opts.Size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &Flash{opts: opts, mem: mem, protected: opts.Protected}
}

// Conn returns the device's select line.
func (f *Flash) Conn(name string) *Conn {
	return &Conn{name: name, dev: f}
}

// Bytes copies n bytes starting at off.
func (f *Flash) Bytes(off, n int) []byte {
	out := make([]byte, n)
	copy(out, f.mem[off:])
	return out
}

// Poke overwrites memory directly, bypassing the command set.
func (f *Flash) Poke(off int, b []byte) {
	copy(f.mem[off:], b)
}

// SetStuck pins the busy bit on.
func (f *Flash) SetStuck(stuck bool) { f.stuck = stuck }

// Protected reports the calibration block protection state.
func (f *Flash) Protected() bool { return f.protected }

// Rejected counts commands that were ignored (no write enable, busy, protected).
func (f *Flash) Rejected() int { return f.rejected }

// Programs counts accepted page programs.
func (f *Flash) Programs() int { return f.programs }

// Erases counts accepted erases.
func (f *Flash) Erases() int { return f.erases }

func (f *Flash) handle(frame []byte) []byte {
	resp := make([]byte, len(frame))
	if len(frame) == 0 {
		return resp
	}

	op := frame[0]
	if (f.busy > 0 || f.stuck) && op != flashRDSR {
		f.rejected++
		return resp
	}

	switch op {
	case flashRDSR:
		var st byte
		if f.busy > 0 || f.stuck {
			st |= statusBusy
		}
		if f.wel {
			st |= statusWEL
		}
		for i := 1; i < len(resp); i++ {
			resp[i] = st
		}
		if f.busy > 0 {
			f.busy--
		}

	case flashWREN:
		f.wel = true

	case flashWRDI:
		f.wel = false

	case flashREAD:
		a, ok := addr(frame, 3)
		if !ok {
			return resp
		}
		for i := 4; i < len(frame); i++ {
			resp[i] = f.mem[(int(a)+i-4)%len(f.mem)]
		}

	case flashPP:
		a, ok := addr(frame, 3)
		if !ok || !f.accept(int(a)) {
			return resp
		}
		base := int(a) &^ (flashPage - 1)
		for i, b := range frame[4:] {
			off := base + (int(a)+i)%flashPage
			f.mem[off] &= b
		}
		f.programs++
		f.busy = f.opts.ProgramPolls

	case flashSE, flashBE:
		a, ok := addr(frame, 3)
		if !ok {
			return resp
		}
		size := flashSector
		if op == flashBE {
			size = flashBlock
		}
		base := int(a) &^ (size - 1)
		if !f.accept(base) {
			return resp
		}
		for i := base; i < base+size && i < len(f.mem); i++ {
			f.mem[i] = 0xFF
		}
		f.erases++
		f.busy = f.opts.ErasePolls

	case flashULBPR:
		if !f.wel {
			f.rejected++
			return resp
		}
		f.protected = false
		f.wel = false

	case flashWBPR:
		if !f.wel {
			f.rejected++
			return resp
		}
		// byte 1 of the 18-byte register carries block 0's write-protect bit
		f.protected = len(frame) > 2 && frame[2]&0x01 != 0
		f.wel = false
	}

	return resp
}

// accept consumes the write enable latch and applies protection.
func (f *Flash) accept(off int) bool {
	if !f.wel {
		f.rejected++
		return false
	}
	f.wel = false
	if f.protected && off < protectedEnd {
		f.rejected++
		return false
	}
	return true
}
