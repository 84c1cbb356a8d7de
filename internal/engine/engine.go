// internal/engine/engine.go
package engine

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/calib"
	"github.com/tamzrod/nvstore/internal/demandlog"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/status"
	"github.com/tamzrod/nvstore/internal/waveform"
)

// Options tune an Engine. Zero poll limits select the flash defaults.
type Options struct {
	MaxProgramPolls int
	MaxErasePolls   int

	Logger *slog.Logger
}

// captureKinds maps a capture kind to its erase, second erase and write
// request types.
var captureKinds = [waveform.NumCaptureKinds][3]arbiter.Kind{
	waveform.Trip:     {arbiter.TripErase, arbiter.TripErase2, arbiter.TripWrite},
	waveform.Alarm:    {arbiter.AlarmErase, arbiter.AlarmErase2, arbiter.AlarmWrite},
	waveform.Extended: {arbiter.ExtErase, arbiter.ExtErase2, arbiter.ExtWrite},
}

var calReadKinds = map[calib.Block]arbiter.Kind{
	calib.AFE:       arbiter.AFECalRead,
	calib.ADCHigh:   arbiter.ADCHCalRead,
	calib.ADCLow:    arbiter.ADCLCalRead,
	calib.Injection: arbiter.InjRead,
}

// Engine owns the bus, the handshake, the arbiter and one context record
// per request type. Tick must be called from a single goroutine; the
// collaborator API may be used from others.
type Engine struct {
	x     bus.Exchanger
	log   *slog.Logger
	hs    arbiter.Handshake
	arb   *arbiter.Arbiter
	flags status.Flags
	ring  *waveform.Ring

	captures [waveform.NumCaptureKinds]*waveform.Capture

	calWrite *calib.WriteTask
	injWrite *calib.WriteTask
	calRead  map[calib.Block]*calib.ReadTask
	calCheck *calib.CheckTask

	demandWrite *demandlog.WriteTask
	demandErase *demandlog.EraseTask
	demandRead  *demandlog.ReadTask

	recWrite *record.WriteTask
	recRead  *record.ReadTask

	waveRead *waveform.ReadTask
	oneCycle *waveform.OneCycleTask

	ticks   atomic.Uint64
	active  atomic.Uint32 // running kind + 1
	dropped atomic.Uint64

	mu      sync.Mutex
	failing bool
	lastErr uint16
}

// New builds the task table over x.
func New(x bus.Exchanger, opts Options) (*Engine, error) {
	if x == nil {
		return nil, errors.New("engine: exchanger required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		x:    x,
		log:  log,
		ring: waveform.NewRing(),
	}

	var tasks [arbiter.NumKinds]arbiter.Task

	// ------------------------------------------------------------
	// Waveform captures: erase, erase 2, write per kind
	// ------------------------------------------------------------

	for ck := waveform.Trip; ck < waveform.NumCaptureKinds; ck++ {
		c := waveform.NewCapture(ck)
		e.captures[ck] = c

		ks := captureKinds[ck]
		tasks[ks[0]] = waveform.NewEraseTask(x, c, false, opts.MaxErasePolls)
		tasks[ks[1]] = waveform.NewEraseTask(x, c, true, opts.MaxErasePolls)
		tasks[ks[2]] = waveform.NewWriteTask(x, c, e.ring, e.preempted(ck), opts.MaxProgramPolls)
	}

	e.waveRead = waveform.NewReadTask(x)
	e.oneCycle = waveform.NewOneCycleTask(x)
	tasks[arbiter.WaveformRead] = e.waveRead
	tasks[arbiter.ExtCapLogWrite] = e.oneCycle

	// ------------------------------------------------------------
	// Calibration
	// ------------------------------------------------------------

	e.calWrite = calib.NewMeterWriteTask(x, opts.MaxErasePolls, opts.MaxProgramPolls)
	e.injWrite = calib.NewInjectionWriteTask(x, opts.MaxErasePolls, opts.MaxProgramPolls)
	e.calCheck = calib.NewCheckTask(x, &e.flags)
	tasks[arbiter.CalWrite] = e.calWrite
	tasks[arbiter.InjWrite] = e.injWrite
	tasks[arbiter.CalCheck] = e.calCheck

	e.calRead = make(map[calib.Block]*calib.ReadTask, len(calReadKinds))
	for b, k := range calReadKinds {
		t := calib.NewReadTask(x, &e.flags, b)
		e.calRead[b] = t
		tasks[k] = t
	}

	// ------------------------------------------------------------
	// Demand log
	// ------------------------------------------------------------

	e.demandWrite = demandlog.NewWriteTask(x, opts.MaxProgramPolls)
	e.demandErase = demandlog.NewEraseTask(x, opts.MaxErasePolls)
	e.demandRead = demandlog.NewReadTask(x)
	tasks[arbiter.DemandWrite] = e.demandWrite
	tasks[arbiter.DemandErase] = e.demandErase
	tasks[arbiter.DemandRead] = e.demandRead

	// ------------------------------------------------------------
	// Redundant records
	// ------------------------------------------------------------

	e.recWrite = record.NewWriteTask(x)
	e.recRead = record.NewReadTask(x, &e.flags)
	tasks[arbiter.RecordWrite] = e.recWrite
	tasks[arbiter.RecordRead] = e.recRead

	arb, err := arbiter.New(&e.hs, tasks, e.complete)
	if err != nil {
		return nil, err
	}
	e.arb = arb
	return e, nil
}

// preempted reports whether a higher-precedence capture write is waiting.
func (e *Engine) preempted(ck waveform.Kind) func() bool {
	return func() bool {
		for hk := waveform.Trip; hk < ck; hk++ {
			if e.hs.Pending(captureKinds[hk][2]) {
				return true
			}
		}
		return false
	}
}

// complete is the arbiter's completion hook. It runs on the Tick goroutine.
func (e *Engine) complete(c arbiter.Completion) {
	if c.Err != nil {
		e.fail(c)
	} else {
		e.log.Debug("task complete", "kind", c.Kind, "tick", c.Tick)
		e.mu.Lock()
		e.failing = false
		e.lastErr = 0
		e.mu.Unlock()
	}

	switch c.Kind {
	case arbiter.TripWrite, arbiter.AlarmWrite, arbiter.ExtWrite:
		e.captureDone(c)

	case arbiter.RecordRead:
		if e.recRead.Source == record.SourceDefault {
			e.log.Warn("record corrupt, default used",
				"loc", e.recRead.Primary,
				"corruptions", e.flags.Corruptions(),
			)
		}

	case arbiter.AFECalRead, arbiter.ADCHCalRead, arbiter.ADCLCalRead, arbiter.InjRead:
		for b, k := range calReadKinds {
			if k == c.Kind && e.calRead[b].Source != record.SourcePrimary && c.Err == nil {
				e.log.Warn("calibration fallback",
					"block", b,
					"source", e.calRead[b].Source,
				)
			}
		}
	}
}

// captureDone applies precedence: a completed capture withdraws queued
// captures of every lower kind. That covers a lower capture armed in the
// same tick and one armed while this capture was writing; only a lower
// capture already acknowledged is left alone.
func (e *Engine) captureDone(c arbiter.Completion) {
	var ck waveform.Kind
	for k := range captureKinds {
		if captureKinds[k][2] == c.Kind {
			ck = waveform.Kind(k)
		}
	}
	capt := e.captures[ck]

	switch capt.State() {
	case waveform.StateAborted:
		e.log.Info("capture aborted", "kind", ck, "slot", capt.Slot, "sets", capt.Committed())
		return
	case waveform.StateComplete:
		e.log.Info("capture complete", "kind", ck, "slot", capt.Slot, "eid", capt.EID)
	default:
		return
	}

	for lk := ck + 1; lk < waveform.NumCaptureKinds; lk++ {
		withdrawn := false
		for _, k := range captureKinds[lk] {
			if e.hs.Pending(k) {
				e.hs.Withdraw(k)
				withdrawn = true
			}
		}
		if withdrawn {
			e.captures[lk].Supersede()
			e.log.Info("capture superseded", "kind", lk, "by", ck)
		}
	}
}

func (e *Engine) fail(c arbiter.Completion) {
	code := errorCode(c.Err)

	if errors.Is(c.Err, flash.ErrBusyStall) {
		e.flags.Raise(status.FlagDeviceStall)
	}
	if isInvalidParam(c.Err) {
		e.flags.Raise(status.FlagInvalidParam)
	}

	e.log.Warn("task failed",
		"kind", c.Kind,
		"tick", c.Tick,
		"code", code,
		"err", c.Err,
	)

	e.mu.Lock()
	e.failing = true
	e.lastErr = code
	e.mu.Unlock()
}
