// internal/waveform/sample.go
package waveform

import "math"

// SetWords is the stored size of one sample-set in 16-bit words.
const SetWords = 18

// SampleSet is one metering sample of every channel.
//
// Stored layout, 18 words: Ia Ib Ic In Igsrc Igres as float32 (low half
// first), then Van Vbn Vcn (AFE) and Van Vbn Vcn (ADC) as int16.
type SampleSet struct {
	Ia, Ib, Ic, In float32
	Igsrc, Igres   float32

	VanAFE, VbnAFE, VcnAFE int16
	VanADC, VbnADC, VcnADC int16
}

// PutWords writes the stored layout into dst[:SetWords].
func (s SampleSet) PutWords(dst []uint16) {
	for i, f := range [6]float32{s.Ia, s.Ib, s.Ic, s.In, s.Igsrc, s.Igres} {
		u := math.Float32bits(f)
		dst[2*i] = uint16(u)
		dst[2*i+1] = uint16(u >> 16)
	}
	for i, v := range [6]int16{s.VanAFE, s.VbnAFE, s.VcnAFE, s.VanADC, s.VbnADC, s.VcnADC} {
		dst[12+i] = uint16(v)
	}
}

// SetFromWords parses the stored layout from w[:SetWords].
func SetFromWords(w []uint16) SampleSet {
	f := func(i int) float32 {
		return math.Float32frombits(uint32(w[2*i]) | uint32(w[2*i+1])<<16)
	}
	return SampleSet{
		Ia: f(0), Ib: f(1), Ic: f(2), In: f(3), Igsrc: f(4), Igres: f(5),

		VanAFE: int16(w[12]), VbnAFE: int16(w[13]), VcnAFE: int16(w[14]),
		VanADC: int16(w[15]), VbnADC: int16(w[16]), VcnADC: int16(w[17]),
	}
}

// MarshalSets packs sample-sets into page words.
func MarshalSets(sets []SampleSet) []uint16 {
	out := make([]uint16, len(sets)*SetWords)
	for i, s := range sets {
		s.PutWords(out[i*SetWords:])
	}
	return out
}

// UnmarshalSets is the inverse of MarshalSets.
func UnmarshalSets(w []uint16) []SampleSet {
	out := make([]SampleSet, len(w)/SetWords)
	for i := range out {
		out[i] = SetFromWords(w[i*SetWords:])
	}
	return out
}
