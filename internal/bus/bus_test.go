// internal/bus/bus_test.go
package bus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// recordingConn captures what leaves the wire and answers reads with a
// fixed fill byte.
type recordingConn struct {
	txs     [][]byte
	packets [][]spi.Packet
	fill    byte
	err     error
}

func (c *recordingConn) String() string       { return "recording" }
func (c *recordingConn) Duplex() conn.Duplex { return conn.Full }

func (c *recordingConn) Tx(w, r []byte) error {
	c.txs = append(c.txs, append([]byte(nil), w...))
	for i := range r {
		r[i] = c.fill
	}
	return c.err
}

func (c *recordingConn) TxPackets(p []spi.Packet) error {
	cp := make([]spi.Packet, len(p))
	for i, pk := range p {
		cp[i] = pk
		cp[i].W = append([]byte(nil), pk.W...)
		for j := range pk.R {
			pk.R[j] = c.fill
		}
	}
	c.packets = append(c.packets, cp)
	return c.err
}

type recordingPin struct {
	gpio.PinOut
	levels []gpio.Level
}

func (p *recordingPin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return nil
}

func newTestBus(t *testing.T, dev Device, p *Port) *Bus {
	t.Helper()
	b := New()
	require.NoError(t, b.Attach(dev, p))
	return b
}

func TestExchangeHeaderOnly(t *testing.T) {
	c := &recordingConn{}
	b := newTestBus(t, Flash, &Port{Conn: c, AddrBytes: 3})

	require.NoError(t, b.Exchange(Flash, &Frame{Op: 0x06}))

	require.Len(t, c.txs, 1)
	assert.Equal(t, []byte{0x06}, c.txs[0])
	assert.Equal(t, uint64(1), b.Count(Flash))
}

func TestExchangeAddressBytes(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		c := &recordingConn{}
		b := newTestBus(t, FRAM, &Port{Conn: c, AddrBytes: n})

		require.NoError(t, b.Exchange(FRAM, &Frame{Op: 0x02, Addr: 0x123456, HasAddr: true, Out: []byte{0xAA}}))

		want := []byte{0x02, 0x12, 0x34, 0x56}
		want = append([]byte{0x02}, want[4-n:]...)
		want = append(want, 0xAA)
		assert.Equal(t, want, c.txs[0], "addr bytes %d", n)
	}
}

func TestExchangeByteWideRead(t *testing.T) {
	c := &recordingConn{fill: 0x5A}
	b := newTestBus(t, FRAM, &Port{Conn: c, AddrBytes: 2})

	in := make([]byte, 3)
	require.NoError(t, b.Exchange(FRAM, &Frame{Op: 0x03, Addr: 0x0102, HasAddr: true, In: in}))

	assert.Equal(t, []byte{0x03, 0x01, 0x02, 0, 0, 0}, c.txs[0])
	assert.Equal(t, []byte{0x5A, 0x5A, 0x5A}, in)
}

func TestExchangeWideDataSplitsPackets(t *testing.T) {
	c := &recordingConn{}
	b := newTestBus(t, Flash, &Port{Conn: c, AddrBytes: 3, WideData: true})

	out := PutWords([]uint16{0x1234, 0xABCD})
	require.NoError(t, b.Exchange(Flash, &Frame{Op: 0x02, Addr: 0x001000, HasAddr: true, Out: out}))

	require.Empty(t, c.txs)
	require.Len(t, c.packets, 1)
	pk := c.packets[0]
	require.Len(t, pk, 2)

	assert.Equal(t, []byte{0x02, 0x00, 0x10, 0x00}, pk[0].W)
	assert.Equal(t, uint8(8), pk[0].BitsPerWord)
	assert.True(t, pk[0].KeepCS)

	assert.Equal(t, []byte{0x12, 0x34, 0xAB, 0xCD}, pk[1].W)
	assert.Equal(t, uint8(16), pk[1].BitsPerWord)
	assert.False(t, pk[1].KeepCS)
}

func TestExchangeWideDataOddLengthStaysByteWide(t *testing.T) {
	c := &recordingConn{fill: 0x80}
	b := newTestBus(t, Flash, &Port{Conn: c, AddrBytes: 3, WideData: true})

	in := make([]byte, 1)
	require.NoError(t, b.Exchange(Flash, &Frame{Op: 0x05, In: in}))

	assert.Empty(t, c.packets)
	assert.Equal(t, []byte{0x05, 0x00}, c.txs[0])
	assert.Equal(t, byte(0x80), in[0])
}

func TestExchangeInvalidSelectors(t *testing.T) {
	b := newTestBus(t, Flash, &Port{Conn: &recordingConn{}, AddrBytes: 3})

	err := b.Exchange(Device(9), &Frame{Op: 0x06})
	assert.ErrorIs(t, err, ErrInvalidDevice)

	err = b.Exchange(ExtFRAM, &Frame{Op: 0x06})
	assert.ErrorIs(t, err, ErrInvalidDevice)

	err = b.Exchange(Flash, &Frame{Op: 0x02, Out: []byte{1}, In: []byte{0}})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestExchangeDrivesChipSelect(t *testing.T) {
	pin := &recordingPin{}
	c := &recordingConn{err: errors.New("wire fault")}
	b := newTestBus(t, FRAM, &Port{Conn: c, CS: pin, AddrBytes: 3})

	err := b.Exchange(FRAM, &Frame{Op: 0x06})
	require.Error(t, err)
	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High}, pin.levels)
	assert.Equal(t, uint64(0), b.Count(FRAM))
}

func TestAttachValidation(t *testing.T) {
	b := New()
	assert.Error(t, b.Attach(Flash, nil))
	assert.Error(t, b.Attach(Flash, &Port{Conn: &recordingConn{}, AddrBytes: 0}))
	assert.Error(t, b.Attach(Flash, &Port{Conn: &recordingConn{}, AddrBytes: 4}))
	assert.ErrorIs(t, b.Attach(NumDevices, &Port{Conn: &recordingConn{}, AddrBytes: 3}), ErrInvalidDevice)
}

func TestWordsRoundTrip(t *testing.T) {
	in := []uint16{0x0000, 0xFFFF, 0x1234}
	assert.Equal(t, []byte{0, 0, 0xFF, 0xFF, 0x12, 0x34}, PutWords(in))
	assert.Equal(t, in, Words(PutWords(in)))
	assert.Equal(t, []uint16{0x0102}, Words([]byte{1, 2, 3}))
}
