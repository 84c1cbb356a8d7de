// internal/demandlog/demandlog_test.go
package demandlog_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/nvstore/internal/arbiter"
	"github.com/tamzrod/nvstore/internal/demandlog"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/simdev"
)

func run(t *testing.T, task arbiter.Task) error {
	t.Helper()
	task.Reset()
	for n := 0; n < 1000; n++ {
		p, err := task.Step()
		if p == arbiter.Done {
			return err
		}
	}
	t.Fatalf("task never finished")
	return nil
}

func entry(eid uint32) demandlog.Entry {
	return demandlog.Entry{
		EID:         eid,
		Seconds:     1700000000 + eid,
		Nanos:       500,
		RealFwd:     1 << 40,
		RealRev:     3,
		ReactiveFwd: 4,
		ReactiveRev: 5,
		Apparent:    0xFFFFFFFF01,
		DemandI:     [4]float32{1.5, 2.5, 3.5, 0},
		DemandP:     [3]float32{100, -20, 102},
	}
}

func TestEntryRoundTrip(t *testing.T) {
	b := entry(9).Marshal()
	require.Len(t, b, demandlog.EntryBytes)

	got, ok := demandlog.UnmarshalEntry(b)
	require.True(t, ok)
	assert.Equal(t, entry(9), got)

	b[0] ^= 1
	_, ok = demandlog.UnmarshalEntry(b)
	assert.False(t, ok)
}

func TestRingGeometry(t *testing.T) {
	assert.Equal(t, 12992, demandlog.Entries)
	assert.Equal(t, flash.NewAddr(0x010, 0), demandlog.PageAddr(0))
	assert.Equal(t, flash.NewAddr(0x010, 0), demandlog.PageAddr(1))
	assert.Equal(t, flash.NewAddr(0x010, 1), demandlog.PageAddr(2))
	assert.Equal(t, flash.NewAddr(0x1A5, 15), demandlog.PageAddr(demandlog.Entries-1))
	assert.Equal(t, demandlog.PageAddr(0), demandlog.PageAddr(demandlog.Entries))
	assert.Equal(t, uint32(0x010080), demandlog.Offset(1))

	assert.True(t, demandlog.NeedsErase(0))
	assert.True(t, demandlog.NeedsErase(32))
	assert.False(t, demandlog.NeedsErase(33))
	assert.True(t, demandlog.NeedsErase(demandlog.Entries))
}

func TestWriteBothHalvesAndRead(t *testing.T) {
	r, err := simdev.NewRig(simdev.RigOptions{Flash: simdev.FlashOptions{ProgramPolls: 1, ErasePolls: 2}, WideData: true})
	require.NoError(t, err)

	idx := demandlog.Entries - 2

	er := demandlog.NewEraseTask(r.Bus, 0)
	er.Index = idx
	require.NoError(t, run(t, er))

	w := demandlog.NewWriteTask(r.Bus, 0)
	for _, i := range []int{idx, idx + 1} {
		w.Index = i
		w.Entry = entry(uint32(i))
		require.NoError(t, run(t, w))
	}

	rd := demandlog.NewReadTask(r.Bus)
	for _, i := range []int{idx, idx + 1} {
		rd.Index = i
		require.NoError(t, run(t, rd))
		require.True(t, rd.Valid, "entry %d", i)
		assert.Equal(t, entry(uint32(i)), rd.Entry)
	}

	// next index wraps to the start of the ring, still blank
	rd.Index = idx + 2
	require.NoError(t, run(t, rd))
	assert.False(t, rd.Valid)
}

func TestNegativeIndexWraps(t *testing.T) {
	r, err := simdev.NewRig(simdev.RigOptions{})
	require.NoError(t, err)

	w := demandlog.NewWriteTask(r.Bus, 0)
	w.Index = -1
	w.Entry = entry(1)
	require.NoError(t, run(t, w))

	rd := demandlog.NewReadTask(r.Bus)
	rd.Index = demandlog.Entries - 1
	require.NoError(t, run(t, rd))
	assert.True(t, rd.Valid)
}
