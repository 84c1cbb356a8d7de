// internal/simdev/rig.go
package simdev

import (
	"github.com/tamzrod/nvstore/internal/bus"
)

// Sizes of the simulated parts.
const (
	DefaultFRAMSize    = 256 << 10
	DefaultExtFRAMSize = 64 << 10
)

// RigOptions configure a full set of simulated devices.
type RigOptions struct {
	Flash FlashOptions

	FRAMSize    int
	ExtFRAMSize int

	// WideData selects word-wide data phases on every port.
	WideData bool
}

// Rig is a bus with all three devices simulated.
type Rig struct {
	Bus     *bus.Bus
	Flash   *Flash
	FRAM    *FRAM
	ExtFRAM *FRAM
}

// NewRig builds the devices and attaches them to a new bus.
func NewRig(opts RigOptions) (*Rig, error) {
	if opts.FRAMSize <= 0 {
		opts.FRAMSize = DefaultFRAMSize
	}
	if opts.ExtFRAMSize <= 0 {
		opts.ExtFRAMSize = DefaultExtFRAMSize
	}

	r := &Rig{
		Bus:     bus.New(),
		Flash:   NewFlash(opts.Flash),
		FRAM:    NewFRAM(opts.FRAMSize, 3),
		ExtFRAM: NewFRAM(opts.ExtFRAMSize, 2),
	}

	ports := []struct {
		dev  bus.Device
		port *bus.Port
	}{
		{bus.Flash, &bus.Port{Conn: r.Flash.Conn("sim-flash"), AddrBytes: 3, WideData: opts.WideData}},
		{bus.FRAM, &bus.Port{Conn: r.FRAM.Conn("sim-fram"), AddrBytes: 3, WideData: opts.WideData}},
		{bus.ExtFRAM, &bus.Port{Conn: r.ExtFRAM.Conn("sim-extcap-fram"), AddrBytes: 2, WideData: opts.WideData}},
	}
	for _, p := range ports {
		if err := r.Bus.Attach(p.dev, p.port); err != nil {
			return nil, err
		}
	}
	return r, nil
}
