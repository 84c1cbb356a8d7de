// internal/flash/addr.go
package flash

import "fmt"

// Device geometry (SST26VF064B class). These values are fixed by the part.
const (
	PageSize        = 256
	PagesPerSector  = 16
	SectorSize      = PageSize * PagesPerSector
	SectorsPerBlock = 16
	BlockSize       = SectorSize * SectorsPerBlock
	NumSectors      = 2048

	// MaxPageWords is the largest program: one page of 16-bit words.
	MaxPageWords = PageSize / 2
)

// Addr is a page address: 12-bit sector in the high bits, 4-bit page in the
// low bits. Programs are page aligned so the byte offset is always zero.
type Addr uint16

// NewAddr packs a sector and page.
func NewAddr(sector, page int) Addr {
	return Addr((sector&0x0FFF)<<4 | page&0x0F)
}

// SectorAddr is page 0 of sector.
func SectorAddr(sector int) Addr {
	return NewAddr(sector, 0)
}

func (a Addr) Sector() int { return int(a >> 4) }
func (a Addr) Page() int   { return int(a & 0x0F) }

// Offset is the device byte address.
func (a Addr) Offset() uint32 { return uint32(a) << 8 }

// Next is the following page; page 15 carries into the next sector.
func (a Addr) Next() Addr { return a + 1 }

// Add advances n pages.
func (a Addr) Add(pages int) Addr { return a + Addr(pages) }

func (a Addr) String() string {
	return fmt.Sprintf("%03X:%X", a.Sector(), a.Page())
}
