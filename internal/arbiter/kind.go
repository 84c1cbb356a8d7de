// internal/arbiter/kind.go
package arbiter

import "fmt"

// Kind is a request type. Its value is its priority: lower runs first.
type Kind uint8

const (
	TripErase Kind = iota
	TripErase2
	TripWrite
	AlarmErase
	AlarmErase2
	AlarmWrite
	ExtErase
	ExtErase2
	ExtWrite
	WaveformRead
	CalWrite
	InjWrite
	DemandWrite
	DemandErase
	DemandRead
	CalCheck
	InjRead
	AFECalRead
	ADCHCalRead
	ADCLCalRead
	RecordWrite
	RecordRead
	ExtCapLogWrite

	// NumKinds sizes every per-kind table.
	NumKinds
)

var kindNames = [NumKinds]string{
	TripErase:      "trip-erase",
	TripErase2:     "trip-erase-2",
	TripWrite:      "trip-write",
	AlarmErase:     "alarm-erase",
	AlarmErase2:    "alarm-erase-2",
	AlarmWrite:     "alarm-write",
	ExtErase:       "ext-erase",
	ExtErase2:      "ext-erase-2",
	ExtWrite:       "ext-write",
	WaveformRead:   "waveform-read",
	CalWrite:       "cal-write",
	InjWrite:       "inj-write",
	DemandWrite:    "demand-write",
	DemandErase:    "demand-erase",
	DemandRead:     "demand-read",
	CalCheck:       "cal-check",
	InjRead:        "inj-read",
	AFECalRead:     "afe-cal-read",
	ADCHCalRead:    "adch-cal-read",
	ADCLCalRead:    "adcl-cal-read",
	RecordWrite:    "record-write",
	RecordRead:     "record-read",
	ExtCapLogWrite: "extcap-log-write",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Valid reports whether k names a request type.
func (k Kind) Valid() bool { return k < NumKinds }

func (k Kind) bit() uint32 { return 1 << k }
