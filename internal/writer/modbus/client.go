// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/jpillora/backoff"
)

// EndpointClient is a single TCP connection to one status memory endpoint.
// It serializes requests because it mutates SlaveId per write.
//
// A failed request drops the connection. The next request reconnects, but
// not before the backoff delay since the last failure has passed.
type EndpointClient struct {
	mu      sync.Mutex
	cfg     Config
	handler *modbus.TCPClientHandler
	client  modbus.Client

	connected bool
	retryAt   time.Time
	backoff   *backoff.Backoff
	now       func() time.Time
}

type Config struct {
	Endpoint string
	Timeout  time.Duration

	// Reconnect pacing; zero values select 500ms and 30s.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// ErrBackoff is returned while a reconnect is being held off.
var ErrBackoff = errors.New("writer modbus: reconnect backoff")

// NewEndpointClient connects once. Startup fails fast.
func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &EndpointClient{
		cfg:       cfg,
		handler:   h,
		client:    modbus.NewClient(h),
		connected: true,
		backoff: &backoff.Backoff{
			Min:    cfg.MinBackoff,
			Max:    cfg.MaxBackoff,
			Factor: 2,
			Jitter: false,
		},
		now: time.Now,
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.handler.Close()
}

// WriteRegisters issues FC16 at addr.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensure(); err != nil {
		return err
	}

	c.handler.SlaveId = unitID

	qty := uint16(len(regs))
	payload := packRegisters(regs)

	if _, err := c.client.WriteMultipleRegisters(addr, qty, payload); err != nil {
		c.drop()
		return err
	}
	c.backoff.Reset()
	return nil
}

// ensure reconnects a dropped connection once the backoff has elapsed.
func (c *EndpointClient) ensure() error {
	if c.connected {
		return nil
	}
	if now := c.now(); now.Before(c.retryAt) {
		return fmt.Errorf("%w: %s for %s", ErrBackoff, c.cfg.Endpoint, c.retryAt.Sub(now).Round(time.Millisecond))
	}
	if err := c.handler.Connect(); err != nil {
		c.drop()
		return err
	}
	c.connected = true
	return nil
}

func (c *EndpointClient) drop() {
	_ = c.handler.Close()
	c.connected = false
	c.retryAt = c.now().Add(c.backoff.Duration())
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
