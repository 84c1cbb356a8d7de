// internal/writer/modbus/client_test.go
package modbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackRegistersBigEndian(t *testing.T) {
	assert.Equal(t, []byte{0x12, 0x34, 0x00, 0xFF}, packRegisters([]uint16{0x1234, 0x00FF}))
	assert.Empty(t, packRegisters(nil))
}

func TestEndpointRequired(t *testing.T) {
	_, err := NewEndpointClient(Config{})
	assert.Error(t, err)
}

func TestConnectFailsFast(t *testing.T) {
	// nothing listens on the discard port of the loopback address
	_, err := NewEndpointClient(Config{Endpoint: "127.0.0.1:9", Timeout: 200 * time.Millisecond})
	require.Error(t, err)
}
