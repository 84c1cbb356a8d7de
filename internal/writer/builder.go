// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/nvstore/internal/config"
	wmodbus "github.com/tamzrod/nvstore/internal/writer/modbus"
)

// BuildStatusPlan converts the status config into a plan.
// A nil config means status is disabled.
func BuildStatusPlan(s *cfg.StatusConfig) (*StatusPlan, error) {
	if s == nil {
		return nil, nil
	}
	if s.Endpoint == "" {
		return nil, errors.New("writer: status.endpoint required")
	}
	return &StatusPlan{
		Endpoint:   s.Endpoint,
		UnitID:     s.UnitID,
		BaseSlot:   s.BaseSlot,
		DeviceName: s.DeviceName,
	}, nil
}

// BuildStatusWriter connects to the plan's endpoint and returns the writer
// and a closer.
func BuildStatusWriter(plan *StatusPlan, timeout time.Duration) (StatusWriter, func() error, error) {
	if plan == nil {
		return nil, nil, errors.New("writer: status disabled")
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewDeviceStatusWriter(plan, c), c.Close, nil
}
