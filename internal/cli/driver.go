// internal/cli/driver.go
package cli

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/tamzrod/nvstore/internal/archive"
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/calib"
	"github.com/tamzrod/nvstore/internal/config"
	"github.com/tamzrod/nvstore/internal/demandlog"
	"github.com/tamzrod/nvstore/internal/engine"
	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/waveform"
)

// Load generator constants.
const (
	// preTriggerSets is how much history a capture keeps before its trigger.
	preTriggerSets = waveform.CaptureSets / 4

	// setsPerCycle is one line cycle of sample-sets.
	setsPerCycle = waveform.CaptureSets / 36
)

var writeKinds = [waveform.NumCaptureKinds]arbiter.Kind{
	waveform.Trip:     arbiter.TripWrite,
	waveform.Alarm:    arbiter.AlarmWrite,
	waveform.Extended: arbiter.ExtWrite,
}

type recordOp struct {
	rec     layout.Record
	payload []uint32 // write payload, or read default
	apply   func([]uint32)
}

type archiveJob struct {
	kind  waveform.Kind
	slot  int
	eid   uint32
	state waveform.State
	sets  int
}

var calBlocks = []calib.Block{calib.AFE, calib.ADCHigh, calib.ADCLow, calib.Injection}

// driver is the collaborator side of the engine: it feeds the sample ring,
// raises triggers and periodic demand entries, keeps the FRAM bookkeeping
// records and archives completed captures. It only touches the engine
// through the handshake API and runs on one goroutine.
type driver struct {
	e     *engine.Engine
	log   *slog.Logger
	sim   config.SimulationConfig
	store *archive.Store // nil => captures are not archived

	// persisted through FRAM records
	eid       uint32
	slots     [waveform.NumCaptureKinds]int // next slot per kind
	stored    [waveform.NumCaptureKinds]int // headers written per kind
	demandIdx int

	ready     bool
	lastTicks uint64
	pushed    uint64
	seq       uint32

	tripDone  bool
	alarmDone bool
	nextDmd   uint64

	// pendingDemand is submitted once its sector erase, if any, is done.
	pendingDemand *demandlog.Entry
	erasing       bool

	reads     []recordOp
	writes    []recordOp
	recRead   *recordOp
	recWrite  *recordOp
	archives  []archiveJob
	inArchive *archiveJob

	handled  [arbiter.NumKinds]bool
	archived int
}

func newDriver(e *engine.Engine, sim config.SimulationConfig, store *archive.Store, log *slog.Logger) *driver {
	d := &driver{
		e:       e,
		log:     log,
		sim:     sim,
		store:   store,
		nextDmd: uint64(sim.DemandEveryTicks),
	}

	d.reads = []recordOp{
		{rec: layout.MasterEID, payload: []uint32{0}, apply: func(v []uint32) { d.eid = v[0] }},
		{rec: layout.DemandCursor, payload: []uint32{0}, apply: func(v []uint32) { d.demandIdx = demandlog.Wrap(int(v[0])) }},
		{rec: layout.CaptureSlots, payload: []uint32{0, 0, 0}, apply: func(v []uint32) {
			for k := range d.slots {
				d.slots[k], d.stored[k] = unpackSlots(waveform.Kind(k), v[k])
			}
		}},
	}
	return d
}

// start raises the power-up requests: calibration integrity and the three
// calibration reads. Record reads follow one at a time from step.
func (d *driver) start() {
	if err := d.e.CheckCalibration(); err != nil {
		d.log.Warn("calibration check not raised", "err", err)
	}
	for _, b := range calBlocks {
		if err := d.e.ReadCalibration(b); err != nil {
			d.log.Warn("calibration read not raised", "block", b, "err", err)
		}
	}
}

// step runs one collaborator pass: acknowledges first, then new requests.
func (d *driver) step(ctx context.Context) {
	d.collect(ctx)

	ticks := d.e.Ticks()
	d.feed(ticks)

	d.nextRecord()
	d.nextArchive()

	if !d.ready {
		return
	}
	d.triggers(ticks)
	d.demand(ticks)
}

// ------------------------------------------------------------
// ACKNOWLEDGES
// ------------------------------------------------------------

func (d *driver) collect(ctx context.Context) {
	for k := arbiter.Kind(0); k < arbiter.NumKinds; k++ {
		if !d.e.Acked(k) {
			d.handled[k] = false
			continue
		}
		if d.handled[k] {
			continue
		}
		d.handled[k] = true
		d.acked(ctx, k, d.e.Result(k))
		d.e.Release(k)
	}
}

func (d *driver) acked(ctx context.Context, k arbiter.Kind, err error) {
	switch k {
	case arbiter.TripWrite, arbiter.AlarmWrite, arbiter.ExtWrite:
		d.captureDone(k)

	case arbiter.WaveformRead:
		job := d.inArchive
		d.inArchive = nil
		if job == nil {
			return
		}
		if err != nil {
			d.log.Warn("capture readback failed", "kind", job.kind, "slot", job.slot, "err", err)
			return
		}
		d.save(ctx, *job, d.e.Waveform())

	case arbiter.DemandErase:
		d.erasing = false
		if err != nil {
			d.pendingDemand = nil
		}

	case arbiter.DemandWrite:
		if err != nil {
			return
		}
		d.demandIdx = demandlog.Wrap(d.demandIdx + 1)
		d.queueWrite(layout.DemandCursor, []uint32{uint32(d.demandIdx)})

	case arbiter.RecordRead:
		op := d.recRead
		d.recRead = nil
		if op == nil {
			return
		}
		v, src := d.e.Record()
		if err != nil || len(v) != op.rec.Words {
			d.log.Warn("record read failed, keeping default", "record", op.rec.Name, "err", err)
			return
		}
		op.apply(v)
		d.log.Debug("record loaded", "record", op.rec.Name, "source", src)

	case arbiter.RecordWrite:
		d.recWrite = nil

	case arbiter.CalCheck:
		d.log.Info("calibration check", "valid", d.e.CalibrationValid())

	case arbiter.AFECalRead, arbiter.ADCHCalRead, arbiter.ADCLCalRead, arbiter.InjRead:
		for _, b := range calBlocks {
			if ck, _ := engine.CalibrationKind(b); ck == k {
				_, src := d.e.Calibration(b)
				d.log.Info("calibration loaded", "block", b, "source", src)
			}
		}
	}
}

// captureDone writes the header of a finished capture, rotates its slot
// and queues it for the archive. Aborted captures count as stored: the
// header records how much of the slot was committed.
func (d *driver) captureDone(k arbiter.Kind) {
	for kind, wk := range writeKinds {
		if wk != k {
			continue
		}
		ck := waveform.Kind(kind)
		c := d.e.Capture(ck)

		state := c.State()
		if state != waveform.StateComplete && state != waveform.StateAborted {
			return
		}

		d.archives = append(d.archives, archiveJob{
			kind:  ck,
			slot:  c.Slot,
			eid:   c.EID,
			state: state,
			sets:  c.Committed(),
		})
		d.queueWrite(waveform.HeaderRecord(ck, c.Slot), c.Header().Words())

		d.slots[ck] = (c.Slot + 1) % ck.Region().Slots
		d.stored[ck] = min(d.stored[ck]+1, ck.Region().Slots)
		d.queueWrite(layout.CaptureSlots, d.packSlots())
	}
}

// packSlots is the capture-slots payload: per kind, the next slot in the
// low half and the stored count in the high half.
func (d *driver) packSlots() []uint32 {
	v := make([]uint32, waveform.NumCaptureKinds)
	for k := range v {
		v[k] = uint32(d.slots[k]) | uint32(d.stored[k])<<16
	}
	return v
}

func unpackSlots(k waveform.Kind, w uint32) (next, stored int) {
	n := k.Region().Slots
	return int(w&0xFFFF) % n, min(int(w>>16), n)
}

func (d *driver) save(ctx context.Context, job archiveJob, sets []waveform.SampleSet) {
	if d.store == nil {
		return
	}
	id, err := d.store.Save(ctx, archive.Capture{
		Kind:    job.kind,
		Slot:    job.slot,
		EID:     job.eid,
		State:   job.state,
		Samples: append([]waveform.SampleSet(nil), sets...),
	})
	if err != nil {
		d.log.Error("archive save failed", "kind", job.kind, "err", err)
		return
	}
	d.archived++
	d.log.Info("capture archived", "id", id, "kind", job.kind, "slot", job.slot, "eid", job.eid, "sets", len(sets))
}

// ------------------------------------------------------------
// REQUESTS
// ------------------------------------------------------------

// feed pushes one sample-set per elapsed engine tick and logs a one-cycle
// entry every line cycle.
func (d *driver) feed(ticks uint64) {
	n := ticks - d.lastTicks
	d.lastTicks = ticks
	if n > waveform.RingSize {
		n = waveform.RingSize
	}

	for ; n > 0; n-- {
		d.e.PushSample(synthetic(d.pushed))
		d.pushed++

		if d.pushed%setsPerCycle == 0 {
			d.seq++
			entry := waveform.OneCycleEntry{Seq: d.seq}
			for i := range entry.Values {
				entry.Values[i] = float32(100 + i)
			}
			if err := d.e.LogOneCycle(entry); err != nil {
				d.log.Debug("one-cycle entry skipped", "seq", d.seq, "err", err)
			}
		}
	}
}

func synthetic(n uint64) waveform.SampleSet {
	ph := 2 * math.Pi * float64(n%setsPerCycle) / setsPerCycle
	i := func(off float64) float32 { return float32(100 * math.Sin(ph+off)) }
	v := func(off float64) int16 { return int16(8000 * math.Sin(ph+off)) }

	return waveform.SampleSet{
		Ia: i(0), Ib: i(-2 * math.Pi / 3), Ic: i(2 * math.Pi / 3),
		VanAFE: v(0), VbnAFE: v(-2 * math.Pi / 3), VcnAFE: v(2 * math.Pi / 3),
		VanADC: v(0), VbnADC: v(-2 * math.Pi / 3), VcnADC: v(2 * math.Pi / 3),
	}
}

func (d *driver) triggers(ticks uint64) {
	if at := d.sim.TripAtTick; at > 0 && !d.tripDone && ticks >= uint64(at) {
		d.tripDone = d.arm(waveform.Trip)
	}
	if at := d.sim.AlarmAtTick; at > 0 && !d.alarmDone && ticks >= uint64(at) {
		d.alarmDone = d.arm(waveform.Alarm)
	}
}

func (d *driver) arm(k waveform.Kind) bool {
	eid := d.eid + 1
	start := d.e.Ring().Back(preTriggerSets)

	if err := d.e.ArmCapture(k, d.slots[k], start, eid, time.Now()); err != nil {
		d.log.Warn("capture not armed", "kind", k, "err", err)
		return false
	}
	d.eid = eid
	d.queueWrite(layout.MasterEID, []uint32{eid})
	d.log.Info("capture armed", "kind", k, "slot", d.slots[k], "eid", eid, "start", start)
	return true
}

func (d *driver) demand(ticks uint64) {
	if d.pendingDemand != nil {
		if !d.erasing && d.e.SubmitDemand(d.demandIdx, *d.pendingDemand) == nil {
			d.pendingDemand = nil
		}
		return
	}

	every := uint64(d.sim.DemandEveryTicks)
	if every == 0 || ticks < d.nextDmd {
		return
	}

	now := time.Now()
	entry := demandlog.Entry{
		EID:     d.eid,
		Seconds: uint32(now.Unix()),
		Nanos:   uint32(now.Nanosecond()),
		RealFwd: ticks,
		DemandI: [4]float32{100, 100, 100, 0},
		DemandP: [3]float32{24000, 24000, 24000},
	}

	if demandlog.NeedsErase(d.demandIdx) {
		if err := d.e.RequestDemandErase(d.demandIdx); err != nil {
			return
		}
		d.pendingDemand = &entry
		d.erasing = true
	} else if err := d.e.SubmitDemand(d.demandIdx, entry); err != nil {
		return
	}
	d.nextDmd = ticks + every
}

// nextRecord keeps one record read and one record write in flight.
// Writes wait until the power-up reads are done.
func (d *driver) nextRecord() {
	if d.recRead == nil && len(d.reads) > 0 {
		op := d.reads[0]
		if err := d.e.ReadRecord(op.rec, op.payload); err == nil {
			d.reads = d.reads[1:]
			d.recRead = &op
		}
	}
	if d.recRead == nil && len(d.reads) == 0 && !d.ready {
		d.ready = true
		d.log.Info("records loaded", "eid", d.eid, "demand_index", d.demandIdx, "slots", d.slots, "stored", d.stored)
	}

	if !d.ready || d.recWrite != nil || len(d.writes) == 0 {
		return
	}
	op := d.writes[0]
	if err := d.e.WriteRecord(op.rec, op.payload); err == nil {
		d.writes = d.writes[1:]
		d.recWrite = &op
	}
}

// queueWrite replaces a queued write of the same record.
func (d *driver) queueWrite(r layout.Record, payload []uint32) {
	for i := range d.writes {
		if d.writes[i].rec.Addr == r.Addr {
			d.writes[i].payload = payload
			return
		}
	}
	d.writes = append(d.writes, recordOp{rec: r, payload: payload})
}

func (d *driver) nextArchive() {
	if d.inArchive != nil || len(d.archives) == 0 {
		return
	}
	job := d.archives[0]
	if job.sets == 0 {
		d.archives = d.archives[1:]
		return
	}
	if err := d.e.ReadWaveform(job.kind, job.slot, job.sets); err != nil {
		return
	}
	d.archives = d.archives[1:]
	d.inArchive = &job
}
