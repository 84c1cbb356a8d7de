// internal/layout/layout.go
package layout

import (
	"fmt"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/record"
)

// Fixed build-time address map. Nothing here is allocated at run time.

// Region is a named range of Flash sectors, End exclusive.
// Pooled regions are split into Slots equal slots of SlotSectors each.
type Region struct {
	Name        string
	Start       int
	End         int
	Slots       int
	SlotSectors int
}

// Sectors is the region length.
func (r Region) Sectors() int { return r.End - r.Start }

// SlotAddr is page 0 of slot i.
func (r Region) SlotAddr(i int) flash.Addr {
	return flash.SectorAddr(r.Start + i*r.SlotSectors)
}

// WaveformSlotSectors is one capture: two 64 KiB blocks.
const WaveformSlotSectors = 2 * flash.SectorsPerBlock

var (
	InjectionCal   = Region{Name: "injection-cal", Start: 0x000, End: 0x001}
	MeterCal       = Region{Name: "meter-cal", Start: 0x001, End: 0x002}
	DemandLog      = Region{Name: "demand-log", Start: 0x010, End: 0x1A6}
	ExtWaveforms   = Region{Name: "ext-waveforms", Start: 0x1C0, End: 0x2A0, Slots: 7, SlotSectors: WaveformSlotSectors}
	TripWaveforms  = Region{Name: "trip-waveforms", Start: 0x2A0, End: 0x540, Slots: 21, SlotSectors: WaveformSlotSectors}
	AlarmWaveforms = Region{Name: "alarm-waveforms", Start: 0x540, End: 0x7E0, Slots: 21, SlotSectors: WaveformSlotSectors}
	Reserved       = Region{Name: "reserved", Start: 0x7E0, End: flash.NumSectors}
)

// FlashRegions lists every Flash region in address order.
var FlashRegions = []Region{
	InjectionCal,
	MeterCal,
	DemandLog,
	ExtWaveforms,
	TripWaveforms,
	AlarmWaveforms,
	Reserved,
}

// Record is a named FRAM (or Flash) record location.
// Redundant records have a second copy at Addr+record.SecondaryOffset.
type Record struct {
	Name      string
	Device    bus.Device
	Addr      uint32
	Words     int
	Redundant bool
}

// Loc is the primary location.
func (r Record) Loc() record.Loc {
	return record.Loc{Device: r.Device, Addr: r.Addr}
}

// Bytes is the stored size of one copy.
func (r Record) Bytes() uint32 { return uint32(record.Size(r.Words)) }

// Calibration payload sizes, in 32-bit words.
const (
	AFECalWords       = 23
	ADCCalWords       = 16
	InjectionCalWords = 10
)

// FRAM base of the calibration copies. They have no FRAM secondary; the
// Flash calibration sectors hold the second copy.
const framCalBase = 0x30000

var (
	StartupScale = Record{Name: "startup-scale", Device: bus.FRAM, Addr: 0x00000, Words: 1, Redundant: true}
	MasterEID    = Record{Name: "master-eid", Device: bus.FRAM, Addr: 0x00010, Words: 1, Redundant: true}
	DemandIPeaks = Record{Name: "demand-i-peaks", Device: bus.FRAM, Addr: 0x00020, Words: 10, Redundant: true}
	DemandPPeaks = Record{Name: "demand-p-peaks", Device: bus.FRAM, Addr: 0x00050, Words: 6, Redundant: true}
	DemandCursor = Record{Name: "demand-cursor", Device: bus.FRAM, Addr: 0x00070, Words: 1, Redundant: true}
	CaptureSlots = Record{Name: "capture-slots", Device: bus.FRAM, Addr: 0x00080, Words: 3, Redundant: true}

	AFECalFRAM  = Record{Name: "afe-cal", Device: bus.FRAM, Addr: framCalBase, Words: AFECalWords}
	ADCHCalFRAM = Record{Name: "adch-cal", Device: bus.FRAM, Addr: framCalBase + 0x64, Words: ADCCalWords}
	ADCLCalFRAM = Record{Name: "adcl-cal", Device: bus.FRAM, Addr: framCalBase + 0xAC, Words: ADCCalWords}
	InjCalFRAM  = Record{Name: "inj-cal", Device: bus.FRAM, Addr: framCalBase + 0xF4, Words: InjectionCalWords}
)

// FRAMRecords lists the on-board FRAM map in address order.
var FRAMRecords = []Record{
	StartupScale,
	MasterEID,
	DemandIPeaks,
	DemandPPeaks,
	DemandCursor,
	CaptureSlots,
	AFECalFRAM,
	ADCHCalFRAM,
	ADCLCalFRAM,
	InjCalFRAM,
}

// Capture headers: one redundant record per waveform slot, packed in
// WaveformRegions order.
const (
	HeaderWords  = 4 // sets, EID, seconds, nanoseconds
	headerBase   = 0x00100
	headerStride = 0x20
)

// WaveformRegions lists the capture pools in header order.
var WaveformRegions = []Region{ExtWaveforms, TripWaveforms, AlarmWaveforms}

// CaptureHeader is the header record of slot i of a capture pool.
func CaptureHeader(r Region, i int) Record {
	n := 0
	for _, p := range WaveformRegions {
		if p.Start == r.Start {
			break
		}
		n += p.Slots
	}
	return Record{
		Name:      fmt.Sprintf("%s-header-%d", r.Name, i),
		Device:    bus.FRAM,
		Addr:      headerBase + uint32(n+i)*headerStride,
		Words:     HeaderWords,
		Redundant: true,
	}
}

// Flash copies of the calibration blocks: the meter blocks share page 0 of
// the meter sector back to back, injection has its own sector.
var (
	AFECalFlash  = Record{Name: "afe-cal", Device: bus.Flash, Addr: MeterCal.SlotAddr(0).Offset(), Words: AFECalWords}
	ADCHCalFlash = Record{Name: "adch-cal", Device: bus.Flash, Addr: MeterCal.SlotAddr(0).Offset() + 0x64, Words: ADCCalWords}
	ADCLCalFlash = Record{Name: "adcl-cal", Device: bus.Flash, Addr: MeterCal.SlotAddr(0).Offset() + 0xAC, Words: ADCCalWords}
	InjCalFlash  = Record{Name: "inj-cal", Device: bus.Flash, Addr: InjectionCal.SlotAddr(0).Offset(), Words: InjectionCalWords}
)

// Extended-capture FRAM: one-cycle RMS log ring.
const (
	OneCycleBase    uint32 = 0x0000
	OneCycleEntries        = 360
)
