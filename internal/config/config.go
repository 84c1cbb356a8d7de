// internal/config/config.go
package config

type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Devices    DevicesConfig    `yaml:"devices"`
	Status     *StatusConfig    `yaml:"status"`
	Archive    *ArchiveConfig   `yaml:"archive"`
	Simulation SimulationConfig `yaml:"simulation"`
}

// ---- ENGINE ----

type EngineConfig struct {
	TickUs          int `yaml:"tick_us"`
	MaxProgramPolls int `yaml:"max_program_polls"` // 0 => flash default
	MaxErasePolls   int `yaml:"max_erase_polls"`   // 0 => flash default
}

// ---- DEVICES ----

const (
	DriverSim    = "sim"
	DriverSpidev = "spidev"
)

type DevicesConfig struct {
	Driver     string     `yaml:"driver"`
	Flash      PortConfig `yaml:"flash"`
	FRAM       PortConfig `yaml:"fram"`
	ExtCapFRAM PortConfig `yaml:"extcap_fram"`
}

// PortConfig is one device's select line. Port and CSPin are periph
// registry names; both are ignored by the sim driver.
type PortConfig struct {
	Port      string `yaml:"port"`
	SpeedHz   int64  `yaml:"speed_hz"`
	AddrBytes int    `yaml:"addr_bytes"`
	WideData  bool   `yaml:"wide_data"`
	CSPin     string `yaml:"cs_pin"` // optional GPIO select
}

// ---- STATUS BLOCK (OPTIONAL) ----

type StatusConfig struct {
	Endpoint   string `yaml:"endpoint"`
	UnitID     uint8  `yaml:"unit_id"`
	BaseSlot   uint16 `yaml:"base_slot"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	DeviceName string `yaml:"device_name"`
}

// ---- ARCHIVE (OPTIONAL) ----

type ArchiveConfig struct {
	Database string `yaml:"database"`
}

// ---- SIMULATION ----

// SimulationConfig drives the sim devices and the run command's load
// generator. Zero tick values disable the matching event.
type SimulationConfig struct {
	ProgramBusyPolls int `yaml:"program_busy_polls"`
	EraseBusyPolls   int `yaml:"erase_busy_polls"`
	DemandEveryTicks int `yaml:"demand_every_ticks"`
	TripAtTick       int `yaml:"trip_at_tick"`
	AlarmAtTick      int `yaml:"alarm_at_tick"`
}
