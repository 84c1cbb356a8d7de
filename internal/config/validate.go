// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}

	// ------------------------------------------------------------
	// ENGINE
	// ------------------------------------------------------------

	if cfg.Engine.TickUs < 0 {
		return fmt.Errorf("engine.tick_us must be >= 0 (got %d)", cfg.Engine.TickUs)
	}
	if cfg.Engine.MaxProgramPolls < 0 {
		return fmt.Errorf("engine.max_program_polls must be >= 0 (got %d)", cfg.Engine.MaxProgramPolls)
	}
	if cfg.Engine.MaxErasePolls < 0 {
		return fmt.Errorf("engine.max_erase_polls must be >= 0 (got %d)", cfg.Engine.MaxErasePolls)
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	d := cfg.Devices
	switch d.Driver {
	case "", DriverSim, DriverSpidev:
	default:
		return fmt.Errorf("devices.driver %q: want %q or %q", d.Driver, DriverSim, DriverSpidev)
	}

	ports := []struct {
		name string
		p    PortConfig
	}{
		{"flash", d.Flash},
		{"fram", d.FRAM},
		{"extcap_fram", d.ExtCapFRAM},
	}

	// key = port | cs_pin
	selectOwner := make(map[string]string)

	for _, pc := range ports {
		if pc.p.AddrBytes != 0 && (pc.p.AddrBytes < 1 || pc.p.AddrBytes > 3) {
			return fmt.Errorf("devices.%s.addr_bytes must be 1..3 (got %d)", pc.name, pc.p.AddrBytes)
		}
		if pc.p.SpeedHz < 0 {
			return fmt.Errorf("devices.%s.speed_hz must be >= 0 (got %d)", pc.name, pc.p.SpeedHz)
		}

		if d.Driver != DriverSpidev {
			continue
		}
		if pc.p.Port == "" {
			return fmt.Errorf("devices.%s.port is required for driver %q", pc.name, DriverSpidev)
		}

		key := fmt.Sprintf("%s|%s", pc.p.Port, pc.p.CSPin)
		if prev, exists := selectOwner[key]; exists {
			return fmt.Errorf(
				"select line collision: port=%s cs_pin=%q used by %s and %s",
				pc.p.Port,
				pc.p.CSPin,
				prev,
				pc.name,
			)
		}
		selectOwner[key] = pc.name
	}

	// ------------------------------------------------------------
	// STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if s := cfg.Status; s != nil {
		if s.Endpoint == "" {
			return fmt.Errorf("status.endpoint is required when status is set")
		}
		if s.TimeoutMs < 0 {
			return fmt.Errorf("status.timeout_ms must be >= 0 (got %d)", s.TimeoutMs)
		}
		// device_name sanity (ASCII only)
		for i := 0; i < len(s.DeviceName); i++ {
			if s.DeviceName[i] > 0x7F {
				return fmt.Errorf("status.device_name must contain ASCII characters only")
			}
		}
	}

	// ------------------------------------------------------------
	// ARCHIVE (OPT-IN)
	// ------------------------------------------------------------

	if a := cfg.Archive; a != nil && a.Database == "" {
		return fmt.Errorf("archive.database is required when archive is set")
	}

	// ------------------------------------------------------------
	// SIMULATION
	// ------------------------------------------------------------

	sim := cfg.Simulation
	for name, v := range map[string]int{
		"program_busy_polls": sim.ProgramBusyPolls,
		"erase_busy_polls":   sim.EraseBusyPolls,
		"demand_every_ticks": sim.DemandEveryTicks,
		"trip_at_tick":       sim.TripAtTick,
		"alarm_at_tick":      sim.AlarmAtTick,
	} {
		if v < 0 {
			return fmt.Errorf("simulation.%s must be >= 0 (got %d)", name, v)
		}
	}

	return nil
}
