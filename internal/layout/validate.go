// internal/layout/validate.go
package layout

import (
	"fmt"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/record"
)

// Validate checks the address map for overlaps and bounds.
// It performs declarative validation only.
func Validate(framSize uint32) error {
	type span struct {
		start uint32
		end   uint32 // inclusive
		name  string
	}

	// ------------------------------------------------------------
	// FLASH REGIONS
	// ------------------------------------------------------------

	var regions []span
	for _, r := range FlashRegions {
		if r.Start < 0 || r.End > flash.NumSectors || r.End <= r.Start {
			return fmt.Errorf("region %q: sectors %d-%d out of range", r.Name, r.Start, r.End)
		}
		if r.Slots > 0 && r.Slots*r.SlotSectors > r.Sectors() {
			return fmt.Errorf("region %q: %d slots of %d sectors exceed %d sectors",
				r.Name, r.Slots, r.SlotSectors, r.Sectors())
		}

		start, end := uint32(r.Start), uint32(r.End-1)
		for _, s := range regions {
			// overlap check (inclusive)
			if !(end < s.start || start > s.end) {
				return fmt.Errorf("region overlap: %q sectors %d-%d overlaps %q sectors %d-%d",
					r.Name, start, end, s.name, s.start, s.end)
			}
		}
		regions = append(regions, span{start: start, end: end, name: r.Name})
	}

	// ------------------------------------------------------------
	// FRAM RECORDS (both copies)
	// ------------------------------------------------------------

	// key = device
	spans := make(map[bus.Device][]span)

	add := func(name string, dev bus.Device, start, size uint32) error {
		end := start + size - 1
		if dev == bus.FRAM && end >= framSize {
			return fmt.Errorf("record %q: 0x%05X-0x%05X beyond fram size 0x%05X", name, start, end, framSize)
		}
		for _, s := range spans[dev] {
			if !(end < s.start || start > s.end) {
				return fmt.Errorf("record overlap: %q 0x%05X-0x%05X overlaps %q 0x%05X-0x%05X",
					name, start, end, s.name, s.start, s.end)
			}
		}
		spans[dev] = append(spans[dev], span{start: start, end: end, name: name})
		return nil
	}

	if headerStride < record.Size(HeaderWords) {
		return fmt.Errorf("capture header: stride %d below record size %d", headerStride, record.Size(HeaderWords))
	}
	records := append([]Record(nil), FRAMRecords...)
	for _, r := range WaveformRegions {
		for i := 0; i < r.Slots; i++ {
			records = append(records, CaptureHeader(r, i))
		}
	}

	for _, r := range records {
		if err := add(r.Name, r.Device, r.Addr, r.Bytes()); err != nil {
			return err
		}
		if r.Redundant {
			if err := add(r.Name+" (copy)", r.Device, r.Addr+record.SecondaryOffset, r.Bytes()); err != nil {
				return err
			}
		}
	}

	// meter calibration must fit in one page
	end := ADCLCalFlash.Addr + ADCLCalFlash.Bytes()
	if end > AFECalFlash.Addr+flash.PageSize {
		return fmt.Errorf("meter calibration spans %d bytes, page is %d", end-AFECalFlash.Addr, flash.PageSize)
	}

	return nil
}
