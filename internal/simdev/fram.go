// internal/simdev/fram.go
package simdev

const (
	framWRSR  = 0x01
	framWRITE = 0x02
	framREAD  = 0x03
	framWRDI  = 0x04
	framRDSR  = 0x05
	framWREN  = 0x06
)

// FRAM simulates a serial FRAM: no busy time, writes need the enable latch,
// and the latch clears when the write frame ends.
type FRAM struct {
	mem       []byte
	addrBytes int
	wel       bool

	tear   int
	writes int
}

// NewFRAM returns a zeroed device of size bytes addressed with addrBytes.
func NewFRAM(size, addrBytes int) *FRAM {
	return &FRAM{mem: make([]byte, size), addrBytes: addrBytes, tear: -1}
}

// Conn returns the device's select line.
func (f *FRAM) Conn(name string) *Conn {
	return &Conn{name: name, dev: f}
}

// Bytes copies n bytes starting at off.
func (f *FRAM) Bytes(off, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = f.mem[(off+i)%len(f.mem)]
	}
	return out
}

// Poke overwrites memory directly.
func (f *FRAM) Poke(off int, b []byte) {
	for i, v := range b {
		f.mem[(off+i)%len(f.mem)] = v
	}
}

// FlipBit inverts one bit, the way a glitch would.
func (f *FRAM) FlipBit(off int, bit uint) {
	f.mem[off%len(f.mem)] ^= 1 << (bit % 8)
}

// TearNextWrite commits only the first n data bytes of the next write,
// modelling power lost part way through a frame.
func (f *FRAM) TearNextWrite(n int) { f.tear = n }

// Writes counts accepted write frames.
func (f *FRAM) Writes() int { return f.writes }

func (f *FRAM) handle(frame []byte) []byte {
	resp := make([]byte, len(frame))
	if len(frame) == 0 {
		return resp
	}

	switch frame[0] {
	case framWREN:
		f.wel = true

	case framWRDI:
		f.wel = false

	case framRDSR:
		var st byte
		if f.wel {
			st = 0x02
		}
		for i := 1; i < len(resp); i++ {
			resp[i] = st
		}

	case framWRSR:
		f.wel = false

	case framREAD:
		a, ok := addr(frame, f.addrBytes)
		if !ok {
			return resp
		}
		hdr := 1 + f.addrBytes
		for i := hdr; i < len(frame); i++ {
			resp[i] = f.mem[(int(a)+i-hdr)%len(f.mem)]
		}

	case framWRITE:
		a, ok := addr(frame, f.addrBytes)
		if !ok || !f.wel {
			return resp
		}
		f.wel = false

		data := frame[1+f.addrBytes:]
		if f.tear >= 0 && f.tear < len(data) {
			data = data[:f.tear]
		}
		f.tear = -1

		for i, b := range data {
			f.mem[(int(a)+i)%len(f.mem)] = b
		}
		f.writes++
	}

	return resp
}
