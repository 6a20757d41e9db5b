package myenergi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/icholy/digest"
	"go.uber.org/zap"
)

const (
	directorURL = "https://director.myenergi.net"

	// the director answers with the account's assigned server in this header
	serverHeader = "x_myenergi-asn"
)

// ChargerClient reads the live state of a single Zappi charger.
// Implementations are not required to be safe for concurrent use; the zappi
// adapter actor serializes all calls.
type ChargerClient interface {
	// Connect authenticates against the myenergi director and discovers the
	// account's API server. Must be called before Refresh.
	Connect(ctx context.Context) error
	// Refresh fetches a fresh charger status snapshot.
	Refresh(ctx context.Context) (*ChargerStatus, error)
	Close() error
}

type hubClient struct {
	client  *http.Client
	baseURL string
	serial  string
	logger  *zap.Logger
}

// NewChargerClient creates a Zappi client. Username is the myenergi hub serial
// and password the API key, as shown in the myenergi app.
func NewChargerClient(username, password, serial string, logger *zap.Logger) ChargerClient {
	return &hubClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &digest.Transport{
				Username: username,
				Password: password,
			},
		},
		serial: serial,
		logger: logger,
	}
}

func (c *hubClient) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directorURL+c.statusPath(), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("myenergi: director request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	asn := resp.Header.Get(serverHeader)
	if asn == "" {
		return fmt.Errorf("myenergi: director did not assign a server (status %d)", resp.StatusCode)
	}
	c.baseURL = "https://" + asn
	c.logger.Info("myenergi: connected", zap.String("server", asn))
	return nil
}

func (c *hubClient) Refresh(ctx context.Context) (*ChargerStatus, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("myenergi: not connected")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.statusPath(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("myenergi: status request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("myenergi: unexpected status %d", resp.StatusCode)
	}
	status, err := parseZappiStatus(body, c.serial)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("myenergi: refreshed",
		zap.String("state", string(status.State)),
		zap.String("plug_state", string(status.PlugState)),
		zap.String("charge_mode", string(status.ChargeMode)))
	return status, nil
}

func (c *hubClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *hubClient) statusPath() string {
	return "/cgi-jstatus-Z" + c.serial
}

// zappiPayload is the vendor wire format of /cgi-jstatus-Z.
type zappiPayload struct {
	Zappi []struct {
		Serial     json.Number `json:"sno"`
		Status     int         `json:"sta"`
		PlugStatus string      `json:"pst"`
		ChargeMode int         `json:"zmo"`
		ChargeRate int         `json:"div"`
	} `json:"zappi"`
}

func parseZappiStatus(body []byte, serial string) (*ChargerStatus, error) {
	var payload zappiPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("myenergi: malformed status payload: %w", err)
	}
	for _, z := range payload.Zappi {
		if z.Serial.String() != serial {
			continue
		}
		return &ChargerStatus{
			State:       chargerStateFromCode(z.Status),
			PlugState:   plugStateFromCode(z.PlugStatus),
			ChargeMode:  chargeModeFromCode(z.ChargeMode),
			ChargeWatts: z.ChargeRate,
		}, nil
	}
	return nil, fmt.Errorf("myenergi: zappi %s not present in status payload", serial)
}
