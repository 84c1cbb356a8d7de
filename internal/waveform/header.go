// internal/waveform/header.go
package waveform

import (
	"time"

	"github.com/tamzrod/nvstore/internal/layout"
)

// Header is the FRAM summary of one stored capture. Sets is how much of the
// slot is valid; an aborted capture keeps its committed prefix.
type Header struct {
	Sets int
	EID  uint32
	TS   time.Time
}

// Words is the record payload: sets, EID, seconds, nanoseconds.
func (h Header) Words() []uint32 {
	var sec, nsec uint32
	if !h.TS.IsZero() {
		sec, nsec = uint32(h.TS.Unix()), uint32(h.TS.Nanosecond())
	}
	return []uint32{uint32(h.Sets), h.EID, sec, nsec}
}

// ParseHeader is the inverse of Words. A zero timestamp reads back as the
// zero time.
func ParseHeader(v []uint32) Header {
	if len(v) < layout.HeaderWords {
		return Header{}
	}
	h := Header{Sets: int(v[0]), EID: v[1]}
	if v[2] != 0 || v[3] != 0 {
		h.TS = time.Unix(int64(v[2]), int64(v[3])).UTC()
	}
	return h
}

// HeaderRecord is the FRAM header of slot of kind k.
func HeaderRecord(k Kind, slot int) layout.Record {
	return layout.CaptureHeader(k.Region(), slot)
}
