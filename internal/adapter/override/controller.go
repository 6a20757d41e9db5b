package override

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// manualChargePath is the vendor's instant manual-charge endpoint. The
// misspelled last segment is real: the cloud only answers on "manunal".
const manualChargePath = "device/energy-profile/instant/manunal"

// Session provides the authenticated context needed to reach the Sigenergy
// cloud outside the read-only client calls.
type Session interface {
	EnsureValidToken(ctx context.Context) error
	BaseURL() string
	StationID() string
	AuthHeaders() http.Header
}

// Controller issues the instant manual-charge override against the station.
type Controller struct {
	session Session
	client  *http.Client
	logger  *zap.Logger
}

func NewController(session Session, logger *zap.Logger) *Controller {
	return &Controller{
		session: session,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// manualChargePayload is the vendor wire format. Duration and power limit are
// numbers-as-strings, mode "0" is grid charge.
type manualChargePayload struct {
	Enable          bool   `json:"enable"`
	StationID       string `json:"stationId"`
	Mode            string `json:"mode"`
	Duration        string `json:"duration"`
	PowerLimitation string `json:"powerLimitation"`
}

// Set enables or disables the manual grid-charge override. Disabling always
// sends zero duration and power regardless of the arguments.
func (c *Controller) Set(ctx context.Context, enable bool, durationMinutes int, powerKw float64) error {
	if err := c.session.EnsureValidToken(ctx); err != nil {
		return err
	}
	if !enable {
		durationMinutes = 0
		powerKw = 0
	}
	payload, err := json.Marshal(manualChargePayload{
		Enable:          enable,
		StationID:       c.session.StationID(),
		Mode:            "0",
		Duration:        strconv.Itoa(durationMinutes),
		PowerLimitation: strconv.FormatFloat(powerKw, 'f', -1, 64),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.session.BaseURL()+manualChargePath, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for key, values := range c.session.AuthHeaders() {
		for _, value := range values {
			req.Header.Set(key, value)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("override: manual charge request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("override: manual charge returned status %d: %s", resp.StatusCode, body)
	}
	var env struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("override: malformed manual charge response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("override: manual charge rejected: cloud error %d: %s", env.Code, env.Msg)
	}

	c.logger.Info("override: manual charge set",
		zap.Bool("enable", enable),
		zap.Int("duration_minutes", durationMinutes),
		zap.Float64("power_kw", powerKw))
	return nil
}
