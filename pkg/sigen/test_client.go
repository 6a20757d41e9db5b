package sigen

import (
	"context"
	"net/http"
)

// TestClient is an in-memory Client for actor tests.
type TestClient struct {
	Flow             *EnergyFlow
	FlowErr          error
	Modes            []OperationalMode
	CurrentMode      string
	InitializeErr    error
	InitializeCalls  int
	EnsureTokenCalls int
}

func NewTestClient() *TestClient {
	soc := 55.0
	power := 0.0
	return &TestClient{
		Flow: &EnergyFlow{BatterySoc: &soc, BatteryPower: &power},
		Modes: []OperationalMode{
			{Label: "Sigen AI Mode", Value: "1"},
			{Label: "Maximum Self-Powered Mode", Value: "2"},
			{Label: "Time-of-Use Mode", Value: "5"},
		},
		CurrentMode: "Maximum Self-Powered Mode",
	}
}

func (c *TestClient) Initialize(ctx context.Context) error {
	c.InitializeCalls++
	return c.InitializeErr
}

func (c *TestClient) EnsureValidToken(ctx context.Context) error {
	c.EnsureTokenCalls++
	return nil
}

func (c *TestClient) GetOperationalModes(ctx context.Context) ([]OperationalMode, error) {
	return c.Modes, nil
}

func (c *TestClient) GetOperationalMode(ctx context.Context) (string, error) {
	return c.CurrentMode, nil
}

func (c *TestClient) SetOperationalMode(ctx context.Context, value int) error {
	return nil
}

func (c *TestClient) GetEnergyFlow(ctx context.Context) (*EnergyFlow, error) {
	if c.FlowErr != nil {
		return nil, c.FlowErr
	}
	return c.Flow, nil
}

func (c *TestClient) BaseURL() string {
	return "https://sigen.invalid/"
}

func (c *TestClient) StationID() string {
	return "100000"
}

func (c *TestClient) AuthHeaders() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer test-token")
	h.Set("Content-Type", "application/json")
	return h
}

func (c *TestClient) Close() error {
	return nil
}

// SetBatteryPower replaces the flow's battery power, keeping SOC.
func (c *TestClient) SetBatteryPower(watts float64) {
	if c.Flow == nil {
		c.Flow = &EnergyFlow{}
	}
	c.Flow.BatteryPower = &watts
}

var _ Client = (*TestClient)(nil)
