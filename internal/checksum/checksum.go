// internal/checksum/checksum.go
package checksum

// Sum32 is the additive checksum over 32-bit words.
// Overflow wraps modulo 2^32.
func Sum32(words []uint32) uint32 {
	var sum uint32
	for _, w := range words {
		sum += w
	}
	return sum
}

// Complement is the bitwise NOT of a checksum.
func Complement(sum uint32) uint32 {
	return ^sum
}

// Seal returns payload followed by its checksum and complement.
// The payload slice is not modified.
func Seal(payload []uint32) []uint32 {
	out := make([]uint32, 0, len(payload)+2)
	out = append(out, payload...)

	sum := Sum32(payload)
	return append(out, sum, Complement(sum))
}

// Valid reports whether a sealed record is intact:
// the checksum matches the payload AND the complement is ^checksum.
func Valid(sealed []uint32) bool {
	if len(sealed) < 2 {
		return false
	}

	n := len(sealed) - 2
	sum := sealed[n]
	comp := sealed[n+1]

	return sum == Sum32(sealed[:n]) && comp == Complement(sum)
}

// Payload returns the payload portion of a sealed record.
// It does not validate.
func Payload(sealed []uint32) []uint32 {
	if len(sealed) < 2 {
		return nil
	}
	return sealed[:len(sealed)-2]
}
