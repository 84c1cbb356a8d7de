// internal/fram/fram.go
package fram

import (
	"fmt"

	"github.com/tamzrod/nvstore/internal/bus"
)

// Command set shared by both FRAM parts.
const (
	OpWriteStatus  = 0x01
	OpWrite        = 0x02
	OpRead         = 0x03
	OpWriteDisable = 0x04
	OpReadStatus   = 0x05
	OpWriteEnable  = 0x06
)

// FRAM has no write latency: a write is complete when its frame ends.

// Write stores data at addr on dev: write enable, then one write frame.
func Write(x bus.Exchanger, dev bus.Device, addr uint32, data []byte) error {
	if dev == bus.Flash {
		return fmt.Errorf("%w: %s is not an FRAM", bus.ErrInvalidDevice, dev)
	}
	if err := x.Exchange(dev, &bus.Frame{Op: OpWriteEnable}); err != nil {
		return err
	}
	return x.Exchange(dev, &bus.Frame{Op: OpWrite, Addr: addr, HasAddr: true, Out: data})
}

// Read fills out from addr on dev.
func Read(x bus.Exchanger, dev bus.Device, addr uint32, out []byte) error {
	if dev == bus.Flash {
		return fmt.Errorf("%w: %s is not an FRAM", bus.ErrInvalidDevice, dev)
	}
	if len(out) == 0 {
		return nil
	}
	return x.Exchange(dev, &bus.Frame{Op: OpRead, Addr: addr, HasAddr: true, In: out})
}
