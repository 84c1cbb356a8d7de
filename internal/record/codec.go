// internal/record/codec.go
package record

import (
	"math"

	"github.com/tamzrod/nvstore/internal/checksum"
)

// Stored layout of a record of n payload words, 4*(n+2) bytes:
//
//	word 0..n-1  payload
//	word n       checksum (additive, mod 2^32)
//	word n+1     complement (^checksum)
//
// Each 32-bit word is stored low half first; each half is MSB first.

// Size is the stored size in bytes of a record with n payload words.
func Size(n int) int { return (n + 2) * 4 }

// Marshal serializes sealed words.
func Marshal(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		lo, hi := uint16(w), uint16(w>>16)
		out[4*i] = byte(lo >> 8)
		out[4*i+1] = byte(lo)
		out[4*i+2] = byte(hi >> 8)
		out[4*i+3] = byte(hi)
	}
	return out
}

// Unmarshal is the inverse of Marshal. Trailing bytes short of a word are
// ignored.
func Unmarshal(b []byte) []uint32 {
	out := make([]uint32, len(b)/4)
	for i := range out {
		lo := uint32(b[4*i])<<8 | uint32(b[4*i+1])
		hi := uint32(b[4*i+2])<<8 | uint32(b[4*i+3])
		out[i] = hi<<16 | lo
	}
	return out
}

// Encode seals and serializes a payload.
func Encode(payload []uint32) []byte {
	return Marshal(checksum.Seal(payload))
}

// Decode parses a stored record and returns a copy of its payload.
// ok is false when the checksum or complement does not match.
func Decode(b []byte) (payload []uint32, ok bool) {
	words := Unmarshal(b)
	if !checksum.Valid(words) {
		return nil, false
	}
	p := checksum.Payload(words)
	return append([]uint32(nil), p...), true
}

// Float32Words packs float values into payload words.
func Float32Words(v ...float32) []uint32 {
	out := make([]uint32, len(v))
	for i, f := range v {
		out[i] = math.Float32bits(f)
	}
	return out
}

// WordsFloat32 unpacks payload words into floats.
func WordsFloat32(w []uint32) []float32 {
	out := make([]float32, len(w))
	for i, u := range w {
		out[i] = math.Float32frombits(u)
	}
	return out
}
