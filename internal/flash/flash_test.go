// internal/flash/flash_test.go
package flash_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/flash"
	"github.com/tamzrod/nvstore/internal/simdev"
)

func newRig(t *testing.T, opts simdev.FlashOptions) *simdev.Rig {
	t.Helper()
	r, err := simdev.NewRig(simdev.RigOptions{Flash: opts, WideData: true})
	require.NoError(t, err)
	return r
}

// drive steps op until it ends and returns the number of steps taken.
func drive(t *testing.T, step func() (bool, error)) (int, error) {
	t.Helper()
	for n := 1; n < 10000; n++ {
		done, err := step()
		if done {
			return n, err
		}
	}
	t.Fatalf("operation never ended")
	return 0, nil
}

func TestAddrPacking(t *testing.T) {
	a := flash.NewAddr(0x2A0, 3)
	assert.Equal(t, flash.Addr(0x2A03), a)
	assert.Equal(t, 0x2A0, a.Sector())
	assert.Equal(t, 3, a.Page())
	assert.Equal(t, uint32(0x2A0300), a.Offset())
	assert.Equal(t, "2A0:3", a.String())

	// page 15 carries into the next sector
	assert.Equal(t, flash.NewAddr(0x2A1, 0), flash.NewAddr(0x2A0, 15).Next())
	assert.Equal(t, flash.NewAddr(0x2B0, 0), flash.SectorAddr(0x2A0).Add(256))
}

func TestProgramWritesPageExactly(t *testing.T) {
	r := newRig(t, simdev.FlashOptions{ProgramPolls: 2})

	words := make([]uint16, flash.MaxPageWords)
	for i := range words {
		words[i] = uint16(i*0x0101) ^ 0x5A5A
	}

	var p flash.Program
	a := flash.NewAddr(0x300, 4)
	require.NoError(t, p.Start(a, words))

	steps, err := drive(t, func() (bool, error) { return p.Step(r.Bus) })
	require.NoError(t, err)
	// issue, two busy polls, one ready poll
	assert.Equal(t, 4, steps)

	got, err := flash.ReadPage(r.Bus, a, flash.MaxPageWords)
	require.NoError(t, err)
	assert.Equal(t, words, got)
}

func TestProgramRejectsBadLength(t *testing.T) {
	var p flash.Program
	assert.ErrorIs(t, p.Start(0, nil), flash.ErrPageSize)
	assert.ErrorIs(t, p.Start(0, make([]uint16, flash.MaxPageWords+1)), flash.ErrPageSize)

	var idle flash.Program
	done, err := idle.Step(nil)
	assert.True(t, done)
	assert.ErrorIs(t, err, flash.ErrNotStarted)
}

func TestSectorEraseReadsAllOnes(t *testing.T) {
	r := newRig(t, simdev.FlashOptions{ErasePolls: 5})

	var p flash.Program
	a := flash.NewAddr(0x100, 0)
	require.NoError(t, p.Start(a, []uint16{0, 0, 0, 0}))
	_, err := drive(t, func() (bool, error) { return p.Step(r.Bus) })
	require.NoError(t, err)

	var e flash.Erase
	e.Start(a, false)
	steps, err := drive(t, func() (bool, error) { return e.Step(r.Bus) })
	require.NoError(t, err)
	assert.Equal(t, 7, steps)

	for _, b := range r.Flash.Bytes(int(flash.SectorAddr(0x100).Offset()), flash.SectorSize) {
		require.Equal(t, byte(0xFF), b)
	}
	assert.Equal(t, 1, r.Flash.Erases())
}

func TestBlockEraseCoversSixteenSectors(t *testing.T) {
	r := newRig(t, simdev.FlashOptions{})
	for s := 0x2A0; s < 0x2B1; s++ {
		r.Flash.Poke(int(flash.SectorAddr(s).Offset()), []byte{0})
	}

	var e flash.Erase
	e.Start(flash.SectorAddr(0x2A0), true)
	_, err := drive(t, func() (bool, error) { return e.Step(r.Bus) })
	require.NoError(t, err)

	for s := 0x2A0; s < 0x2B0; s++ {
		assert.Equal(t, byte(0xFF), r.Flash.Bytes(int(flash.SectorAddr(s).Offset()), 1)[0], "sector %X", s)
	}
	assert.Equal(t, byte(0), r.Flash.Bytes(int(flash.SectorAddr(0x2B0).Offset()), 1)[0])
}

func TestStuckBusyFailsAfterPollLimit(t *testing.T) {
	r := newRig(t, simdev.FlashOptions{})

	e := flash.Erase{MaxPolls: 3}
	e.Start(flash.SectorAddr(0x20), false)

	done, err := e.Step(r.Bus)
	require.False(t, done)
	require.NoError(t, err)

	r.Flash.SetStuck(true)

	steps, err := drive(t, func() (bool, error) { return e.Step(r.Bus) })
	assert.Equal(t, 3, steps)
	require.ErrorIs(t, err, flash.ErrBusyStall)

	var se *flash.StallError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Polls)
	assert.Equal(t, flash.SectorAddr(0x20), se.Addr)

	// ended operations stay ended
	done, err = e.Step(r.Bus)
	assert.True(t, done)
	assert.NoError(t, err)
}

// statusReg answers every status read with a fixed byte.
type statusReg byte

func (s statusReg) Exchange(dev bus.Device, f *bus.Frame) error {
	if f.Op == flash.OpReadStatus {
		f.In[0] = byte(s)
	}
	return nil
}

func TestEitherBusyBitMeansBusy(t *testing.T) {
	for _, st := range []byte{0x80, 0x01, 0x81, 0x83} {
		busy, err := flash.Busy(statusReg(st))
		require.NoError(t, err)
		assert.True(t, busy, "status 0x%02X", st)
	}

	// write-enable latch alone is not busy
	busy, err := flash.Busy(statusReg(0x02))
	require.NoError(t, err)
	assert.False(t, busy)
}

func TestUnlockAndProtect(t *testing.T) {
	r := newRig(t, simdev.FlashOptions{Protected: true})

	var p flash.Program
	require.NoError(t, p.Start(flash.NewAddr(1, 0), []uint16{0x1234}))
	_, err := drive(t, func() (bool, error) { return p.Step(r.Bus) })
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, r.Flash.Bytes(0x1000, 2))

	require.NoError(t, flash.Unlock(r.Bus))
	assert.False(t, r.Flash.Protected())

	require.NoError(t, p.Start(flash.NewAddr(1, 0), []uint16{0x1234}))
	_, err = drive(t, func() (bool, error) { return p.Step(r.Bus) })
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, r.Flash.Bytes(0x1000, 2))

	require.NoError(t, flash.Protect(r.Bus))
	assert.True(t, r.Flash.Protected())
}

func TestInvalidDeviceSurfaces(t *testing.T) {
	_, err := flash.ReadStatus(bus.New())
	assert.ErrorIs(t, err, bus.ErrInvalidDevice)
}
