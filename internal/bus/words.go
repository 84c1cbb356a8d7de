// internal/bus/words.go
package bus

// PutWords serializes 16-bit words MSB first, the order they leave the wire.
func PutWords(words []uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		out[2*i] = byte(w >> 8)
		out[2*i+1] = byte(w)
	}
	return out
}

// Words is the inverse of PutWords. A trailing odd byte is ignored.
func Words(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return out
}
