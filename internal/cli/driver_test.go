// internal/cli/driver_test.go
package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/nvstore/internal/archive"
	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/config"
	"github.com/tamzrod/nvstore/internal/engine"
	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/simdev"
	"github.com/tamzrod/nvstore/internal/waveform"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*engine.Engine, *simdev.Rig) {
	t.Helper()
	r, err := simdev.NewRig(simdev.RigOptions{
		Flash:    simdev.FlashOptions{ProgramPolls: 1, ErasePolls: 2, Protected: true},
		WideData: true,
	})
	require.NoError(t, err)

	e, err := engine.New(r.Bus, engine.Options{Logger: discard()})
	require.NoError(t, err)
	return e, r
}

// drive ticks the engine and steps d until done reports true.
func drive(t *testing.T, e *engine.Engine, d *driver, done func() bool) {
	t.Helper()
	ctx := context.Background()
	for n := 0; n < 50000; n++ {
		e.Tick()
		d.step(ctx)
		if done() {
			return
		}
	}
	t.Fatal("driver never reached the expected state")
}

func settled(d *driver) bool {
	return d.recWrite == nil && len(d.writes) == 0
}

func TestDriverLoadsDefaultsOnBlankFRAM(t *testing.T) {
	e, _ := newTestEngine(t)
	d := newDriver(e, config.SimulationConfig{}, nil, discard())
	d.start()

	drive(t, e, d, func() bool { return d.ready })

	assert.Zero(t, d.eid)
	assert.Zero(t, d.demandIdx)
	assert.Equal(t, [waveform.NumCaptureKinds]int{}, d.slots)
	assert.Positive(t, e.Snapshot().Corruptions)
}

func TestDriverArchivesTripCapture(t *testing.T) {
	e, _ := newTestEngine(t)
	store, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	defer store.Close()

	d := newDriver(e, config.SimulationConfig{TripAtTick: 5}, store, discard())
	d.start()

	drive(t, e, d, func() bool { return d.archived == 1 && settled(d) })

	caps, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, waveform.Trip, caps[0].Kind)
	assert.Equal(t, 0, caps[0].Slot)
	assert.Equal(t, uint32(1), caps[0].EID)
	assert.Equal(t, waveform.StateComplete, caps[0].State)

	got, err := store.Load(context.Background(), caps[0].ID)
	require.NoError(t, err)
	assert.Len(t, got.Samples, waveform.CaptureSets)

	// the next trip goes to the next slot
	assert.Equal(t, 1, d.slots[waveform.Trip])

	// a restarted collaborator picks up the persisted bookkeeping
	e.Tick()
	d2 := newDriver(e, config.SimulationConfig{}, nil, discard())
	drive(t, e, d2, func() bool { return d2.ready })
	assert.Equal(t, uint32(1), d2.eid)
	assert.Equal(t, 1, d2.slots[waveform.Trip])
	assert.Equal(t, 1, d2.stored[waveform.Trip])
	assert.Zero(t, d2.slots[waveform.Alarm])
	assert.Zero(t, d2.stored[waveform.Alarm])

	h := readHeader(t, e, waveform.Trip, 0)
	assert.Equal(t, waveform.CaptureSets, h.Sets)
	assert.Equal(t, uint32(1), h.EID)
	assert.False(t, h.TS.IsZero())
}

// readHeader reads a capture header back through the engine.
func readHeader(t *testing.T, e *engine.Engine, k waveform.Kind, slot int) waveform.Header {
	t.Helper()
	e.Tick()
	require.NoError(t, e.ReadCaptureHeader(k, slot))
	for !e.Acked(arbiter.RecordRead) {
		e.Tick()
	}
	require.NoError(t, e.Result(arbiter.RecordRead))
	v, src := e.Record()
	require.Equal(t, record.SourcePrimary, src)
	e.Release(arbiter.RecordRead)
	return waveform.ParseHeader(v)
}

func TestDriverHeaderSurvivesAbortedCapture(t *testing.T) {
	e, _ := newTestEngine(t)
	d := newDriver(e, config.SimulationConfig{AlarmAtTick: 5, TripAtTick: 1000}, nil, discard())
	d.start()

	drive(t, e, d, func() bool {
		return d.stored[waveform.Trip] == 1 && d.stored[waveform.Alarm] == 1 && settled(d)
	})

	alarm := e.Capture(waveform.Alarm)
	require.Equal(t, waveform.StateAborted, alarm.State())
	committed := alarm.Committed()
	require.Positive(t, committed)
	require.Less(t, committed, waveform.CaptureSets)

	// a restarted collaborator knows what is stored
	e.Tick()
	d2 := newDriver(e, config.SimulationConfig{}, nil, discard())
	drive(t, e, d2, func() bool { return d2.ready })
	assert.Equal(t, uint32(2), d2.eid)
	assert.Equal(t, [waveform.NumCaptureKinds]int{1, 1, 0}, d2.slots)
	assert.Equal(t, [waveform.NumCaptureKinds]int{1, 1, 0}, d2.stored)

	h := readHeader(t, e, waveform.Alarm, 0)
	assert.Equal(t, committed, h.Sets)
	assert.Zero(t, h.Sets%waveform.SetsPerPage)
	assert.Equal(t, uint32(1), h.EID)
	assert.Equal(t, alarm.TS.Unix(), h.TS.Unix())

	h = readHeader(t, e, waveform.Trip, 0)
	assert.Equal(t, waveform.CaptureSets, h.Sets)
	assert.Equal(t, uint32(2), h.EID)
	assert.False(t, h.TS.Before(alarm.TS))

	// the stored length bounds the readback of the aborted capture
	e.Tick()
	require.NoError(t, e.ReadWaveform(waveform.Alarm, 0, committed))
	for !e.Acked(arbiter.WaveformRead) {
		e.Tick()
	}
	require.NoError(t, e.Result(arbiter.WaveformRead))
	assert.Len(t, e.Waveform(), committed)
}

func TestDriverDemandEntriesEraseFirst(t *testing.T) {
	e, r := newTestEngine(t)
	d := newDriver(e, config.SimulationConfig{DemandEveryTicks: 500}, nil, discard())

	drive(t, e, d, func() bool { return d.demandIdx == 3 && settled(d) })
	assert.Equal(t, 1, r.Flash.Erases())

	// the driver stops here; the next entry is hundreds of ticks away
	e.Tick()

	for idx := 0; idx < 3; idx++ {
		require.NoError(t, e.ReadDemand(idx))
		for !e.Acked(arbiter.DemandRead) {
			e.Tick()
		}
		entry, ok := e.DemandEntry()
		assert.True(t, ok, "entry %d", idx)
		assert.Positive(t, entry.RealFwd)
		e.Release(arbiter.DemandRead)
		e.Tick()
	}

	require.NoError(t, e.ReadRecord(layout.DemandCursor, []uint32{0}))
	for !e.Acked(arbiter.RecordRead) {
		e.Tick()
	}
	v, _ := e.Record()
	assert.Equal(t, []uint32{3}, v)
}

func TestDriverLogsOneCycleEntries(t *testing.T) {
	e, _ := newTestEngine(t)
	d := newDriver(e, config.SimulationConfig{}, nil, discard())

	drive(t, e, d, func() bool { return d.seq >= 2 })
	assert.Equal(t, uint64(2*setsPerCycle), d.pushed)
}
