// internal/engine/snapshot.go
package engine

import (
	"github.com/tamzrod/nvstore/internal/status"
	"github.com/tamzrod/nvstore/internal/waveform"
)

// Snapshot reports current engine state for the status block.
// SecondsInError is owned by the status loop and left zero.
func (e *Engine) Snapshot() status.Snapshot {
	req, ack := e.hs.Words()

	s := status.Snapshot{
		Flags:       e.flags.Load(),
		Requests:    req,
		Acks:        ack,
		ActiveKind:  uint16(e.active.Load()),
		TripSets:    uint16(e.captures[waveform.Trip].Committed()),
		AlarmSets:   uint16(e.captures[waveform.Alarm].Committed()),
		ExtSets:     uint16(e.captures[waveform.Extended].Committed()),
		Corruptions: e.flags.Corruptions(),
	}

	e.mu.Lock()
	failing, code := e.failing, e.lastErr
	e.mu.Unlock()

	s.LastErrorCode = code
	switch {
	case e.ticks.Load() == 0:
		s.Health = status.HealthUnknown
	case failing:
		s.Health = status.HealthError
	case s.Flags != 0:
		s.Health = status.HealthDegraded
	default:
		s.Health = status.HealthOK
	}
	return s
}
