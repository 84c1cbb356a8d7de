// internal/engine/api.go
package engine

import (
	"fmt"
	"time"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/calib"
	"github.com/tamzrod/nvstore/internal/demandlog"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/status"
	"github.com/tamzrod/nvstore/internal/waveform"
)

// Collaborator side of the handshake. Each call populates one context
// record and raises its request. The caller then polls Acked, reads the
// result accessor if any, and calls Release. A context is only written
// while its request is down, so the engine never sees it change mid-task.

// Handshake exposes the raw request/acknowledge words.
func (e *Engine) Handshake() *arbiter.Handshake { return &e.hs }

// Acked reports k's acknowledge.
func (e *Engine) Acked(k arbiter.Kind) bool { return e.hs.Acked(k) }

// Release drops k's request after its acknowledge was observed.
func (e *Engine) Release(k arbiter.Kind) { e.hs.Release(k) }

// Result is the error k's last run ended with. Valid after the acknowledge.
func (e *Engine) Result(k arbiter.Kind) error { return e.arb.Result(k) }

// Flags is the sticky fault word.
func (e *Engine) Flags() *status.Flags { return &e.flags }

// PushSample appends one sample-set to the capture ring.
func (e *Engine) PushSample(s waveform.SampleSet) { e.ring.Push(s) }

// Ring is the capture ring.
func (e *Engine) Ring() *waveform.Ring { return e.ring }

// Capture returns the context of a capture kind.
func (e *Engine) Capture(k waveform.Kind) *waveform.Capture {
	if k >= waveform.NumCaptureKinds {
		return nil
	}
	return e.captures[k]
}

// ---- waveforms ----

// ArmCapture populates a capture context and raises its erase, second
// erase and write requests together.
func (e *Engine) ArmCapture(k waveform.Kind, slot, start int, eid uint32, ts time.Time) error {
	if k >= waveform.NumCaptureKinds {
		return e.invalid(fmt.Errorf("capture kind %d", uint8(k)))
	}
	ks := captureKinds[k][:]
	if err := e.idle(ks...); err != nil {
		return err
	}
	if err := e.captures[k].Arm(slot, start, eid, ts); err != nil {
		return e.invalid(err)
	}
	return e.raise(ks...)
}

// ReadWaveform reads sets sample-sets of a stored capture; see Waveform.
func (e *Engine) ReadWaveform(k waveform.Kind, slot, sets int) error {
	if k >= waveform.NumCaptureKinds {
		return e.invalid(fmt.Errorf("capture kind %d", uint8(k)))
	}
	if slot < 0 || slot >= k.Region().Slots {
		return e.invalid(fmt.Errorf("%w: %s slot %d", waveform.ErrBadSlot, k, slot))
	}
	if sets <= 0 || sets > waveform.CaptureSets {
		return e.invalid(fmt.Errorf("%w: %d", waveform.ErrReadLength, sets))
	}
	if err := e.idle(arbiter.WaveformRead); err != nil {
		return err
	}
	e.waveRead.First = k.Region().SlotAddr(slot)
	e.waveRead.Sets = sets
	return e.raise(arbiter.WaveformRead)
}

// Waveform is the result of ReadWaveform.
func (e *Engine) Waveform() []waveform.SampleSet { return e.waveRead.Out }

// ReadCaptureHeader reads the FRAM header of a stored capture through the
// record read; decode Record with waveform.ParseHeader.
func (e *Engine) ReadCaptureHeader(k waveform.Kind, slot int) error {
	if k >= waveform.NumCaptureKinds {
		return e.invalid(fmt.Errorf("capture kind %d", uint8(k)))
	}
	if slot < 0 || slot >= k.Region().Slots {
		return e.invalid(fmt.Errorf("%w: %s slot %d", waveform.ErrBadSlot, k, slot))
	}
	return e.ReadRecord(waveform.HeaderRecord(k, slot), make([]uint32, layout.HeaderWords))
}

// LogOneCycle writes one entry into the extended-capture FRAM ring.
func (e *Engine) LogOneCycle(entry waveform.OneCycleEntry) error {
	if err := e.idle(arbiter.ExtCapLogWrite); err != nil {
		return err
	}
	e.oneCycle.Entry = entry
	return e.raise(arbiter.ExtCapLogWrite)
}

// ---- demand log ----

// SubmitDemand programs entry at ring index idx.
func (e *Engine) SubmitDemand(idx int, entry demandlog.Entry) error {
	if err := e.idle(arbiter.DemandWrite); err != nil {
		return err
	}
	e.demandWrite.Index = idx
	e.demandWrite.Entry = entry
	return e.raise(arbiter.DemandWrite)
}

// RequestDemandErase erases the sector holding ring index idx.
func (e *Engine) RequestDemandErase(idx int) error {
	if err := e.idle(arbiter.DemandErase); err != nil {
		return err
	}
	e.demandErase.Index = idx
	return e.raise(arbiter.DemandErase)
}

// ReadDemand reads ring index idx; see DemandEntry.
func (e *Engine) ReadDemand(idx int) error {
	if err := e.idle(arbiter.DemandRead); err != nil {
		return err
	}
	e.demandRead.Index = idx
	return e.raise(arbiter.DemandRead)
}

// DemandEntry is the result of ReadDemand.
func (e *Engine) DemandEntry() (demandlog.Entry, bool) {
	return e.demandRead.Entry, e.demandRead.Valid
}

// ---- calibration ----

// WriteCalibration stores the AFE and both ADC blocks.
func (e *Engine) WriteCalibration(afe, adcHigh, adcLow []uint32) error {
	payload := map[calib.Block][]uint32{
		calib.AFE:     afe,
		calib.ADCHigh: adcHigh,
		calib.ADCLow:  adcLow,
	}
	return e.writeCal(arbiter.CalWrite, e.calWrite, payload)
}

// WriteInjection stores the test-injection block.
func (e *Engine) WriteInjection(inj []uint32) error {
	return e.writeCal(arbiter.InjWrite, e.injWrite, map[calib.Block][]uint32{calib.Injection: inj})
}

func (e *Engine) writeCal(k arbiter.Kind, t *calib.WriteTask, payload map[calib.Block][]uint32) error {
	for b, p := range payload {
		if len(p) != b.Words() {
			return e.invalid(fmt.Errorf("%w: %s has %d words, want %d", calib.ErrPayload, b, len(p), b.Words()))
		}
	}
	if err := e.idle(k); err != nil {
		return err
	}
	for b, p := range payload {
		t.Payload[b] = append([]uint32(nil), p...)
	}
	return e.raise(k)
}

// ReadCalibration loads one block; see Calibration.
func (e *Engine) ReadCalibration(b calib.Block) error {
	k, ok := calReadKinds[b]
	if !ok {
		return e.invalid(fmt.Errorf("calibration block %s", b))
	}
	if err := e.idle(k); err != nil {
		return err
	}
	return e.raise(k)
}

// CalibrationKind is the request type that reads block b.
func CalibrationKind(b calib.Block) (arbiter.Kind, bool) {
	k, ok := calReadKinds[b]
	return k, ok
}

// Calibration is the result of ReadCalibration for b.
func (e *Engine) Calibration(b calib.Block) ([]uint32, record.Source) {
	t, ok := e.calRead[b]
	if !ok {
		return nil, record.SourceNone
	}
	return t.Value, t.Source
}

// CheckCalibration verifies the Flash meter blocks; see CalibrationValid.
func (e *Engine) CheckCalibration() error {
	if err := e.idle(arbiter.CalCheck); err != nil {
		return err
	}
	return e.raise(arbiter.CalCheck)
}

// CalibrationValid is the result of CheckCalibration.
func (e *Engine) CalibrationValid() bool { return e.calCheck.Valid }

// ---- records ----

// WriteRecord stores a redundant FRAM record, primary copy first.
func (e *Engine) WriteRecord(r layout.Record, payload []uint32) error {
	if err := checkRecord(r); err != nil {
		return e.invalid(err)
	}
	if len(payload) != r.Words {
		return e.invalid(fmt.Errorf("record %s: %d words, want %d", r.Name, len(payload), r.Words))
	}
	if err := e.idle(arbiter.RecordWrite); err != nil {
		return err
	}
	e.recWrite.Primary = r.Loc()
	e.recWrite.Payload = append([]uint32(nil), payload...)
	return e.raise(arbiter.RecordWrite)
}

// ReadRecord reads a redundant FRAM record; see Record.
func (e *Engine) ReadRecord(r layout.Record, def []uint32) error {
	if err := checkRecord(r); err != nil {
		return e.invalid(err)
	}
	if len(def) != r.Words {
		return e.invalid(fmt.Errorf("record %s: default has %d words, want %d", r.Name, len(def), r.Words))
	}
	if err := e.idle(arbiter.RecordRead); err != nil {
		return err
	}
	e.recRead.Primary = r.Loc()
	e.recRead.Words = r.Words
	e.recRead.Default = append([]uint32(nil), def...)
	return e.raise(arbiter.RecordRead)
}

// Record is the result of ReadRecord.
func (e *Engine) Record() ([]uint32, record.Source) {
	return e.recRead.Value, e.recRead.Source
}

func checkRecord(r layout.Record) error {
	if r.Device == bus.Flash || !r.Redundant {
		return fmt.Errorf("record %s is not a redundant FRAM record", r.Name)
	}
	if r.Words <= 0 || r.Words > flash.MaxPageWords {
		return fmt.Errorf("record %s: %d words", r.Name, r.Words)
	}
	return nil
}

// ---- helpers ----

// idle fails with ErrBusy while any of ks is still raised, or released
// but not yet settled: a stale acknowledge would complete the new request.
func (e *Engine) idle(ks ...arbiter.Kind) error {
	for _, k := range ks {
		if e.hs.Requested(k) || e.hs.Acked(k) {
			return fmt.Errorf("%w: %s", ErrBusy, k)
		}
	}
	return nil
}

func (e *Engine) raise(ks ...arbiter.Kind) error {
	for _, k := range ks {
		if err := e.hs.Request(k); err != nil {
			return err
		}
	}
	return nil
}

// invalid raises the parameter fault for a rejected context.
func (e *Engine) invalid(err error) error {
	e.flags.Raise(status.FlagInvalidParam)
	return fmt.Errorf("%w: %w", ErrInvalidParam, err)
}
