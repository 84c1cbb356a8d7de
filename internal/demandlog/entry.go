// internal/demandlog/entry.go
package demandlog

import (
	"github.com/tamzrod/nvstore/internal/record"
)

// EntryBytes is the stored size of one log entry; two share a page.
const EntryBytes = 128

// payloadWords fills an entry once sealed with checksum and complement.
const payloadWords = EntryBytes/4 - 2

// Entry is one energy/demand snapshot.
//
// Stored layout, 30 payload words then checksum and complement:
//
//	0      EID
//	1-2    time: seconds, nanoseconds
//	3-12   energy: real fwd, real rev, reactive fwd, reactive rev, apparent
//	       (uint64 each, low word first)
//	13-16  current demand Ia Ib Ic In (float32)
//	17-19  power demand P Q S (float32)
//	20-29  zero
type Entry struct {
	EID     uint32
	Seconds uint32
	Nanos   uint32

	RealFwd, RealRev         uint64
	ReactiveFwd, ReactiveRev uint64
	Apparent                 uint64

	DemandI [4]float32
	DemandP [3]float32
}

// Marshal returns the stored bytes.
func (e Entry) Marshal() []byte {
	w := make([]uint32, 0, payloadWords)
	w = append(w, e.EID, e.Seconds, e.Nanos)
	for _, v := range []uint64{e.RealFwd, e.RealRev, e.ReactiveFwd, e.ReactiveRev, e.Apparent} {
		w = append(w, uint32(v), uint32(v>>32))
	}
	w = append(w, record.Float32Words(e.DemandI[:]...)...)
	w = append(w, record.Float32Words(e.DemandP[:]...)...)
	w = w[:payloadWords]

	return record.Encode(w)
}

// UnmarshalEntry parses stored bytes. ok is false for a blank or damaged entry.
func UnmarshalEntry(b []byte) (Entry, bool) {
	w, ok := record.Decode(b)
	if !ok || len(w) != payloadWords {
		return Entry{}, false
	}

	u64 := func(i int) uint64 { return uint64(w[i]) | uint64(w[i+1])<<32 }

	e := Entry{
		EID:         w[0],
		Seconds:     w[1],
		Nanos:       w[2],
		RealFwd:     u64(3),
		RealRev:     u64(5),
		ReactiveFwd: u64(7),
		ReactiveRev: u64(9),
		Apparent:    u64(11),
	}
	copy(e.DemandI[:], record.WordsFloat32(w[13:17]))
	copy(e.DemandP[:], record.WordsFloat32(w[17:20]))
	return e, true
}
