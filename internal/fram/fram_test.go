// internal/fram/fram_test.go
package fram_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/nvstore/internal/bus"
	"github.com/tamzrod/nvstore/internal/fram"
	"github.com/tamzrod/nvstore/internal/simdev"
)

func TestWriteReadBothParts(t *testing.T) {
	r, err := simdev.NewRig(simdev.RigOptions{WideData: true})
	require.NoError(t, err)

	for _, dev := range []bus.Device{bus.FRAM, bus.ExtFRAM} {
		data := []byte{0xCA, 0xFE, 0xBE, 0xEF, 0x00, 0x01}
		require.NoError(t, fram.Write(r.Bus, dev, 0x0100, data))

		got := make([]byte, len(data))
		require.NoError(t, fram.Read(r.Bus, dev, 0x0100, got))
		assert.Equal(t, data, got, dev.String())
	}

	assert.Equal(t, []byte{0xCA, 0xFE}, r.FRAM.Bytes(0x0100, 2))
	assert.Equal(t, []byte{0xCA, 0xFE}, r.ExtFRAM.Bytes(0x0100, 2))
}

func TestRejectsFlashSelector(t *testing.T) {
	r, err := simdev.NewRig(simdev.RigOptions{})
	require.NoError(t, err)

	assert.ErrorIs(t, fram.Write(r.Bus, bus.Flash, 0, []byte{1}), bus.ErrInvalidDevice)
	assert.ErrorIs(t, fram.Read(r.Bus, bus.Flash, 0, make([]byte, 1)), bus.ErrInvalidDevice)
	assert.ErrorIs(t, fram.Read(r.Bus, bus.Device(7), 0, make([]byte, 1)), bus.ErrInvalidDevice)
}
