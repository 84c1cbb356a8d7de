// internal/bus/bus.go
package bus

import (
	"errors"
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Device selects one chip on the shared bus.
type Device uint8

const (
	Flash Device = iota
	FRAM
	ExtFRAM

	NumDevices
)

func (d Device) String() string {
	switch d {
	case Flash:
		return "flash"
	case FRAM:
		return "fram"
	case ExtFRAM:
		return "extcap-fram"
	default:
		return fmt.Sprintf("device(%d)", uint8(d))
	}
}

var (
	// ErrInvalidDevice is returned for a selector with no attached port.
	ErrInvalidDevice = errors.New("bus: invalid device selector")

	// ErrInvalidFrame is returned for a frame the port cannot carry.
	ErrInvalidFrame = errors.New("bus: invalid frame")
)

// Port is one device's connection. Each device has its own select line:
// either the connection's hardware chip-select or CS.
type Port struct {
	Conn spi.Conn

	// CS is driven low around each frame when the port has no hardware select.
	CS gpio.PinOut

	// AddrBytes is the number of address bytes after the opcode (1..3).
	AddrBytes int

	// WideData sends the data phase 16 bits per word.
	// The opcode and address are always sent byte-wide.
	WideData bool
}

// Frame is one framed exchange: opcode, optional address, then data.
// At most one of Out and In is populated.
type Frame struct {
	Op      byte
	Addr    uint32
	HasAddr bool

	Out []byte
	In  []byte
}

// Exchanger performs one framed exchange with a device.
type Exchanger interface {
	Exchange(dev Device, f *Frame) error
}

// Bus is the shared transport. It has one logical owner (the arbiter)
// and therefore no lock; the counters are read from other goroutines.
type Bus struct {
	ports  [NumDevices]*Port
	counts [NumDevices]atomic.Uint64
}

// New returns a bus with no ports attached.
func New() *Bus {
	return &Bus{}
}

// Attach binds a port to a device selector.
func (b *Bus) Attach(dev Device, p *Port) error {
	if dev >= NumDevices {
		return fmt.Errorf("%w: %d", ErrInvalidDevice, uint8(dev))
	}
	if p == nil || p.Conn == nil {
		return fmt.Errorf("bus: %s: connection required", dev)
	}
	if p.AddrBytes < 1 || p.AddrBytes > 3 {
		return fmt.Errorf("bus: %s: addr bytes must be 1..3, got %d", dev, p.AddrBytes)
	}
	b.ports[dev] = p
	return nil
}

// Count returns the number of completed exchanges with dev.
func (b *Bus) Count(dev Device) uint64 {
	if dev >= NumDevices {
		return 0
	}
	return b.counts[dev].Load()
}

// Exchange performs one framed exchange with dev.
func (b *Bus) Exchange(dev Device, f *Frame) error {
	if dev >= NumDevices {
		return fmt.Errorf("%w: %d", ErrInvalidDevice, uint8(dev))
	}
	p := b.ports[dev]
	if p == nil {
		return fmt.Errorf("%w: %s not attached", ErrInvalidDevice, dev)
	}
	if f == nil || (len(f.Out) > 0 && len(f.In) > 0) {
		return ErrInvalidFrame
	}

	header := make([]byte, 1, 4)
	header[0] = f.Op
	if f.HasAddr {
		for i := p.AddrBytes - 1; i >= 0; i-- {
			header = append(header, byte(f.Addr>>(8*uint(i))))
		}
	}

	if p.CS != nil {
		if err := p.CS.Out(gpio.Low); err != nil {
			return err
		}
	}

	err := p.tx(header, f)

	if p.CS != nil {
		if csErr := p.CS.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}
	if err != nil {
		return fmt.Errorf("bus: %s op 0x%02X: %w", dev, f.Op, err)
	}

	b.counts[dev].Add(1)
	return nil
}

func (p *Port) tx(header []byte, f *Frame) error {
	n := len(f.Out) + len(f.In)

	switch {
	case n == 0:
		return p.Conn.Tx(header, nil)

	case p.WideData && n%2 == 0:
		// address phase byte-wide, data phase word-wide, select held between
		data := spi.Packet{BitsPerWord: 16}
		if len(f.Out) > 0 {
			data.W = f.Out
		} else {
			data.W = make([]byte, n)
			data.R = f.In
		}
		return p.Conn.TxPackets([]spi.Packet{
			{W: header, BitsPerWord: 8, KeepCS: true},
			data,
		})

	default:
		w := make([]byte, 0, len(header)+n)
		w = append(w, header...)
		if len(f.Out) > 0 {
			w = append(w, f.Out...)
			return p.Conn.Tx(w, nil)
		}
		w = append(w, make([]byte, n)...)
		r := make([]byte, len(w))
		if err := p.Conn.Tx(w, r); err != nil {
			return err
		}
		copy(f.In, r[len(header):])
		return nil
	}
}
