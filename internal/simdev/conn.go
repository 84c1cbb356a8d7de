// internal/simdev/conn.go
package simdev

import (
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/spi"
)

// handler models a device that sees one complete select-to-deselect frame
// and answers with a response of the same length.
type handler interface {
	handle(frame []byte) []byte
}

// Conn is an in-memory spi.Conn wired to a simulated device.
type Conn struct {
	name string

	mu  sync.Mutex
	dev handler
}

var _ spi.Conn = (*Conn)(nil)

func (c *Conn) String() string       { return c.name }
func (c *Conn) Duplex() conn.Duplex { return conn.Full }

// Tx is one frame.
func (c *Conn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := c.dev.handle(w)
	if r != nil {
		copy(r, resp)
	}
	return nil
}

// TxPackets joins packets into frames; a frame ends at a packet without KeepCS.
// Word width does not change what the device stores.
func (c *Conn) TxPackets(p []spi.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var frame []byte
	start := 0

	for i, pk := range p {
		frame = append(frame, pk.W...)
		if pk.KeepCS && i != len(p)-1 {
			continue
		}

		resp := c.dev.handle(frame)
		off := 0
		for _, q := range p[start : i+1] {
			if q.R != nil {
				copy(q.R, resp[off:])
			}
			off += len(q.W)
		}

		frame = nil
		start = i + 1
	}
	return nil
}

// addr decodes n big-endian address bytes after the opcode.
func addr(frame []byte, n int) (uint32, bool) {
	if len(frame) < 1+n {
		return 0, false
	}
	var a uint32
	for _, b := range frame[1 : 1+n] {
		a = a<<8 | uint32(b)
	}
	return a, true
}
