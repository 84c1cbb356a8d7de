// internal/arbiter/handshake.go
package arbiter

import (
	"errors"
	"fmt"
	"math/bits"
	"sync/atomic"
)

// ErrInvalidKind is returned for a request type outside the table.
var ErrInvalidKind = errors.New("arbiter: invalid request kind")

// Handshake is the request/acknowledge word pair.
//
// Collaborator side: populate the context record, Request, poll Acked,
// then Release. Engine side: an acknowledge is set only while its request
// is set, and is cleared only after the request has been released.
type Handshake struct {
	req atomic.Uint32
	ack atomic.Uint32
}

// Request raises k's request bit.
func (h *Handshake) Request(k Kind) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, uint8(k))
	}
	h.req.Or(k.bit())
	return nil
}

// Release clears k's request bit after its acknowledge was observed.
func (h *Handshake) Release(k Kind) {
	if k.Valid() {
		h.req.And(^k.bit())
	}
}

// Requested reports k's request bit.
func (h *Handshake) Requested(k Kind) bool {
	return k.Valid() && h.req.Load()&k.bit() != 0
}

// Acked reports k's acknowledge bit.
func (h *Handshake) Acked(k Kind) bool {
	return k.Valid() && h.ack.Load()&k.bit() != 0
}

// Pending reports a request that has not been acknowledged yet.
func (h *Handshake) Pending(k Kind) bool {
	return h.Requested(k) && !h.Acked(k)
}

// Words returns the raw request and acknowledge words.
func (h *Handshake) Words() (req, ack uint32) {
	return h.req.Load(), h.ack.Load()
}

// Withdraw drops an unacknowledged request on the engine side.
// It is used when a newer capture supersedes a queued one.
func (h *Handshake) Withdraw(k Kind) {
	if k.Valid() {
		h.req.And(^k.bit())
		h.ack.And(^k.bit())
	}
}

// settle clears acknowledges whose request has been released.
func (h *Handshake) settle() {
	h.ack.And(h.req.Load())
}

// next is the highest-priority request that is pending.
func (h *Handshake) next() (Kind, bool) {
	pending := h.req.Load() &^ h.ack.Load()
	pending &= 1<<NumKinds - 1
	if pending == 0 {
		return 0, false
	}
	return Kind(bits.TrailingZeros32(pending)), true
}

// acknowledge marks k complete if it is still requested.
func (h *Handshake) acknowledge(k Kind) {
	if h.req.Load()&k.bit() != 0 {
		h.ack.Or(k.bit())
	}
}
