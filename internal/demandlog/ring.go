// internal/demandlog/ring.go
package demandlog

import (
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/layout"
)

const (
	EntriesPerPage   = flash.PageSize / EntryBytes
	EntriesPerSector = EntriesPerPage * flash.PagesPerSector
)

// Entries is the ring capacity.
var Entries = layout.DemandLog.Sectors() * EntriesPerSector

// Wrap reduces an entry index into the ring.
func Wrap(idx int) int {
	return ((idx % Entries) + Entries) % Entries
}

// PageAddr is the page holding entry idx.
func PageAddr(idx int) flash.Addr {
	return flash.SectorAddr(layout.DemandLog.Start).Add(Wrap(idx) / EntriesPerPage)
}

// Offset is the device byte address of entry idx.
func Offset(idx int) uint32 {
	return PageAddr(idx).Offset() + uint32(Wrap(idx)%EntriesPerPage)*EntryBytes
}

// NeedsErase reports that entry idx opens a sector, which must be erased
// before the entry is programmed.
func NeedsErase(idx int) bool {
	return Wrap(idx)%EntriesPerSector == 0
}
