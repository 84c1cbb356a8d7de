// internal/engine/errors.go
package engine

import (
	"errors"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/calib"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/waveform"
)

var (
	// ErrBusy is returned when a request type is still raised: the previous
	// request has not been acknowledged and released yet.
	ErrBusy = errors.New("engine: request still raised")

	// ErrInvalidParam is returned when a context record cannot be populated.
	ErrInvalidParam = errors.New("engine: invalid parameter")
)

// Error codes published in the status block. Typed errors carry their own
// code; flash.StallError reports 0x0010.
const (
	CodeGeneric       uint16 = 0x0001
	CodeInvalidDevice uint16 = 0x0020
	CodeInvalidParam  uint16 = 0x0030
	CodeReadOnly      uint16 = 0x0040
)

// errorCode extracts a best-effort uint16 code from an error without
// assuming concrete types. Unknown errors are CodeGeneric.
func errorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	switch {
	case errors.Is(err, bus.ErrInvalidDevice):
		return CodeInvalidDevice
	case isInvalidParam(err):
		return CodeInvalidParam
	case errors.Is(err, record.ErrReadOnly):
		return CodeReadOnly
	}
	return CodeGeneric
}

func isInvalidParam(err error) bool {
	for _, target := range []error{
		ErrInvalidParam,
		arbiter.ErrInvalidKind,
		bus.ErrInvalidFrame,
		flash.ErrPageSize,
		calib.ErrPayload,
		waveform.ErrReadLength,
		waveform.ErrBadSlot,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
