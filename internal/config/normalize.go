// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultTickUs           = 1500
	DefaultSpeedHz          = 20_000_000
	DefaultStatusTimeoutMs  = 500
	DefaultProgramBusyPolls = 1
	DefaultEraseBusyPolls   = 16
	DeviceNameMaxChars      = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Engine.TickUs == 0 {
		cfg.Engine.TickUs = DefaultTickUs
	}
	if cfg.Devices.Driver == "" {
		cfg.Devices.Driver = DriverSim
	}

	// ------------------------------------------------------------
	// PORTS
	// ------------------------------------------------------------

	normalizePort(&cfg.Devices.Flash, 3)
	normalizePort(&cfg.Devices.FRAM, 3)
	normalizePort(&cfg.Devices.ExtCapFRAM, 2)

	// ------------------------------------------------------------
	// STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if s := cfg.Status; s != nil {
		if s.TimeoutMs == 0 {
			s.TimeoutMs = DefaultStatusTimeoutMs
		}
		// ASCII already validated
		if len(s.DeviceName) > DeviceNameMaxChars {
			s.DeviceName = s.DeviceName[:DeviceNameMaxChars]
		}
	}

	// ------------------------------------------------------------
	// SIMULATION
	// ------------------------------------------------------------

	if cfg.Simulation.ProgramBusyPolls == 0 {
		cfg.Simulation.ProgramBusyPolls = DefaultProgramBusyPolls
	}
	if cfg.Simulation.EraseBusyPolls == 0 {
		cfg.Simulation.EraseBusyPolls = DefaultEraseBusyPolls
	}
}

func normalizePort(p *PortConfig, addrBytes int) {
	if p.AddrBytes == 0 {
		p.AddrBytes = addrBytes
	}
	if p.SpeedHz == 0 {
		p.SpeedHz = DefaultSpeedHz
	}
}
