package myenergi

import "context"

// TestChargerClient is an in-memory ChargerClient for actor tests.
type TestChargerClient struct {
	Status       *ChargerStatus
	RefreshErr   error
	ConnectErr   error
	ConnectCalls int
	RefreshCalls int
}

func NewTestChargerClient() *TestChargerClient {
	return &TestChargerClient{
		Status: &ChargerStatus{
			State:      ChargerStatePaused,
			PlugState:  PlugStateOther,
			ChargeMode: ChargeModeEcoPlus,
		},
	}
}

func (c *TestChargerClient) Connect(ctx context.Context) error {
	c.ConnectCalls++
	return c.ConnectErr
}

func (c *TestChargerClient) Refresh(ctx context.Context) (*ChargerStatus, error) {
	c.RefreshCalls++
	if c.RefreshErr != nil {
		return nil, c.RefreshErr
	}
	return c.Status, nil
}

func (c *TestChargerClient) Close() error {
	return nil
}

// SetCharging flips the status between actively charging and idle.
func (c *TestChargerClient) SetCharging(charging bool) {
	if charging {
		c.Status = &ChargerStatus{
			State:       ChargerStateCharging,
			PlugState:   PlugStateCharging,
			ChargeMode:  ChargeModeFast,
			ChargeWatts: 7000,
		}
	} else {
		c.Status = &ChargerStatus{
			State:      ChargerStatePaused,
			PlugState:  PlugStateOther,
			ChargeMode: ChargeModeEcoPlus,
		}
	}
}

var _ ChargerClient = (*TestChargerClient)(nil)
