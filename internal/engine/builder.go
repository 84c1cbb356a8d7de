// internal/engine/builder.go
package engine

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/config"
	"github.com/tamzrod/nvstore/internal/simdev"
)

// Build constructs an Engine over the configured devices.
// Assumes config has already passed Validate and Normalize.
// The closer releases the SPI ports; it is a no-op for the sim driver.
func Build(c *config.Config, log *slog.Logger) (*Engine, func() error, error) {
	var (
		b      *bus.Bus
		closer = func() error { return nil }
		err    error
	)

	switch c.Devices.Driver {
	case config.DriverSpidev:
		b, closer, err = openSpidev(c.Devices)
	default:
		b, err = openSim(c)
	}
	if err != nil {
		return nil, nil, err
	}

	e, err := New(b, Options{
		MaxProgramPolls: c.Engine.MaxProgramPolls,
		MaxErasePolls:   c.Engine.MaxErasePolls,
		Logger:          log,
	})
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return e, closer, nil
}

func openSim(c *config.Config) (*bus.Bus, error) {
	rig, err := simdev.NewRig(simdev.RigOptions{
		Flash: simdev.FlashOptions{
			ProgramPolls: c.Simulation.ProgramBusyPolls,
			ErasePolls:   c.Simulation.EraseBusyPolls,
			Protected:    true,
		},
		WideData: c.Devices.Flash.WideData,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: sim devices: %w", err)
	}
	return rig.Bus, nil
}

// openSpidev opens one SPI port per device through the periph registry.
func openSpidev(d config.DevicesConfig) (*bus.Bus, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("engine: host init: %w", err)
	}

	b := bus.New()
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	ports := []struct {
		dev bus.Device
		cfg config.PortConfig
	}{
		{bus.Flash, d.Flash},
		{bus.FRAM, d.FRAM},
		{bus.ExtFRAM, d.ExtCapFRAM},
	}

	for _, p := range ports {
		port, pc, err := openPort(p.cfg)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("engine: %s: %w", p.dev, err)
		}
		closers = append(closers, pc.Close)

		if err := b.Attach(p.dev, port); err != nil {
			_ = closeAll()
			return nil, nil, err
		}
	}

	return b, closeAll, nil
}

func openPort(c config.PortConfig) (*bus.Port, spi.PortCloser, error) {
	pc, err := spireg.Open(c.Port)
	if err != nil {
		return nil, nil, err
	}

	mode := spi.Mode0
	var cs gpio.PinOut
	if c.CSPin != "" {
		pin := gpioreg.ByName(c.CSPin)
		if pin == nil {
			_ = pc.Close()
			return nil, nil, fmt.Errorf("cs_pin %q not found", c.CSPin)
		}
		if err := pin.Out(gpio.High); err != nil {
			_ = pc.Close()
			return nil, nil, err
		}
		cs = pin
		mode |= spi.NoCS
	}

	conn, err := pc.Connect(physic.Frequency(c.SpeedHz)*physic.Hertz, mode, 8)
	if err != nil {
		_ = pc.Close()
		return nil, nil, err
	}

	return &bus.Port{
		Conn:      conn,
		CS:        cs,
		AddrBytes: c.AddrBytes,
		WideData:  c.WideData,
	}, pc, nil
}
