package sigen

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	tokenPath            = "auth/thirdparty/token"
	stationPath          = "device/owner/station/home"
	operationalModesPath = "device/setting/operational/modes"
	operationalModePath  = "device/setting/operational/mode"
	energyFlowPath       = "device/sigen/station/energyflow"

	// renew the access token a bit before the cloud expires it
	tokenExpiryMargin = 5 * time.Minute
)

// ErrModeNotFound is returned when no operational mode matches a label lookup.
var ErrModeNotFound = errors.New("sigen: operational mode not found")

// Client talks to the Sigenergy cloud API on behalf of a single account and
// station. Calls are expected to be serialized by the owner (the sigen adapter
// actor); the client itself is not safe for concurrent use.
type Client interface {
	Initialize(ctx context.Context) error
	EnsureValidToken(ctx context.Context) error
	GetOperationalModes(ctx context.Context) ([]OperationalMode, error)
	GetOperationalMode(ctx context.Context) (string, error)
	SetOperationalMode(ctx context.Context, value int) error
	GetEnergyFlow(ctx context.Context) (*EnergyFlow, error)
	BaseURL() string
	StationID() string
	AuthHeaders() http.Header
	Close() error
}

type OperationalMode struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// EnergyFlow is the live telemetry snapshot of the station. Pointer fields are
// nil when the cloud response omits them or carries a non-numeric value.
// BatteryPower is in watts: positive = charging, negative = discharging.
type EnergyFlow struct {
	BatterySoc   *float64 `json:"batterySoc"`
	BatteryPower *float64 `json:"batteryPower"`
	PVPower      *float64 `json:"pvPower"`
	LoadPower    *float64 `json:"loadPower"`
	GridPower    *float64 `json:"gridSensorActivePower"`
}

type cloudClient struct {
	client       *http.Client
	baseURL      string
	username     string
	md5Password  string
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	stationID    string
	lastResponse []byte
	logger       *zap.Logger
}

// NewClient creates a Sigenergy cloud client for the given region
// (eu, us, cn or apac).
func NewClient(username, password, region string, logger *zap.Logger) (Client, error) {
	base, err := regionBaseURL(region)
	if err != nil {
		return nil, err
	}
	hash := md5.Sum([]byte(password))
	return &cloudClient{
		client:      &http.Client{Timeout: 30 * time.Second},
		baseURL:     base,
		username:    username,
		md5Password: hex.EncodeToString(hash[:]),
		logger:      logger,
	}, nil
}

func regionBaseURL(region string) (string, error) {
	switch strings.ToLower(region) {
	case "eu":
		return "https://api-eu.sigencloud.com/", nil
	case "us":
		return "https://api-us.sigencloud.com/", nil
	case "cn":
		return "https://api-cn.sigencloud.com/", nil
	case "apac":
		return "https://api-apac.sigencloud.com/", nil
	default:
		return "", fmt.Errorf("sigen: unknown region %q (expected eu, us, cn or apac)", region)
	}
}

// envelope is the common response wrapper of the Sigenergy cloud.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *cloudClient) Initialize(ctx context.Context) error {
	if err := c.login(ctx); err != nil {
		return err
	}
	return c.fetchStationID(ctx)
}

func (c *cloudClient) login(ctx context.Context) error {
	form := url.Values{}
	form.Set("userAccount", c.username)
	form.Set("userPwd", c.md5Password)
	form.Set("grantType", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := c.do(req, &result); err != nil {
		return fmt.Errorf("sigen: login failed: %w", err)
	}
	if result.AccessToken == "" {
		return errors.New("sigen: login response missing access token")
	}
	c.accessToken = result.AccessToken
	c.refreshToken = result.RefreshToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	c.logger.Debug("sigen: logged in", zap.Time("token_expiry", c.tokenExpiry))
	return nil
}

// EnsureValidToken logs in again when the cached access token is missing or
// close to expiry.
func (c *cloudClient) EnsureValidToken(ctx context.Context) error {
	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpiryMargin)) {
		return nil
	}
	return c.login(ctx)
}

func (c *cloudClient) fetchStationID(ctx context.Context) error {
	req, err := c.newGetRequest(ctx, stationPath, nil)
	if err != nil {
		return err
	}
	var result struct {
		StationID int64 `json:"stationId"`
	}
	if err := c.do(req, &result); err != nil {
		return fmt.Errorf("sigen: station discovery failed: %w", err)
	}
	if result.StationID == 0 {
		return errors.New("sigen: no station bound to this account")
	}
	c.stationID = strconv.FormatInt(result.StationID, 10)
	c.logger.Info("sigen: selected station", zap.String("station_id", c.stationID))
	return nil
}

func (c *cloudClient) GetOperationalModes(ctx context.Context) ([]OperationalMode, error) {
	if err := c.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	req, err := c.newGetRequest(ctx, operationalModesPath, nil)
	if err != nil {
		return nil, err
	}
	var modes []OperationalMode
	if err := c.do(req, &modes); err != nil {
		return nil, fmt.Errorf("sigen: list operational modes failed: %w", err)
	}
	return modes, nil
}

func (c *cloudClient) GetOperationalMode(ctx context.Context) (string, error) {
	if err := c.EnsureValidToken(ctx); err != nil {
		return "", err
	}
	req, err := c.newGetRequest(ctx, operationalModePath, url.Values{"stationId": {c.stationID}})
	if err != nil {
		return "", err
	}
	var value string
	if err := c.do(req, &value); err != nil {
		return "", fmt.Errorf("sigen: get operational mode failed: %w", err)
	}
	modes, err := c.GetOperationalModes(ctx)
	if err != nil {
		return value, nil
	}
	for _, mode := range modes {
		if mode.Value == value {
			return mode.Label, nil
		}
	}
	return value, nil
}

func (c *cloudClient) SetOperationalMode(ctx context.Context, value int) error {
	if err := c.EnsureValidToken(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(map[string]any{
		"stationId":       c.stationID,
		"operationalMode": value,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+operationalModePath,
		bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("sigen: set operational mode failed: %w", err)
	}
	return nil
}

// GetEnergyFlow returns the current energy flow of the station. A (nil, nil)
// result means the cloud answered with empty data, which callers must treat as
// an all-unknown snapshot.
func (c *cloudClient) GetEnergyFlow(ctx context.Context) (*EnergyFlow, error) {
	if err := c.EnsureValidToken(ctx); err != nil {
		return nil, err
	}
	req, err := c.newGetRequest(ctx, energyFlowPath, url.Values{"id": {c.stationID}})
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		if len(c.lastResponse) > 0 {
			c.logger.Debug("sigen: last raw response", zap.ByteString("body", c.lastResponse))
		}
		return nil, fmt.Errorf("sigen: get energy flow failed: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var flow EnergyFlow
	if err := json.Unmarshal(raw, &flow); err != nil {
		// tolerate partially non-numeric payloads: decode field by field
		return decodeLooseEnergyFlow(raw), nil
	}
	return &flow, nil
}

// decodeLooseEnergyFlow salvages numeric fields from a payload where the cloud
// mixed in strings like "N/A". Non-numeric fields stay nil.
func decodeLooseEnergyFlow(raw json.RawMessage) *EnergyFlow {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return &EnergyFlow{}
	}
	num := func(key string) *float64 {
		var v float64
		if err := json.Unmarshal(fields[key], &v); err != nil {
			return nil
		}
		return &v
	}
	return &EnergyFlow{
		BatterySoc:   num("batterySoc"),
		BatteryPower: num("batteryPower"),
		PVPower:      num("pvPower"),
		LoadPower:    num("loadPower"),
		GridPower:    num("gridSensorActivePower"),
	}
}

func (c *cloudClient) BaseURL() string {
	return c.baseURL
}

func (c *cloudClient) StationID() string {
	return c.stationID
}

// AuthHeaders returns the session headers needed to issue requests outside
// this client, e.g. the manual-charge override call.
func (c *cloudClient) AuthHeaders() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.accessToken)
	h.Set("Content-Type", "application/json")
	return h
}

func (c *cloudClient) Close() error {
	c.accessToken = ""
	c.refreshToken = ""
	c.client.CloseIdleConnections()
	return nil
}

func (c *cloudClient) newGetRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)
	return req, nil
}

func (c *cloudClient) authorize(req *http.Request) {
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
}

// do executes the request, unwraps the cloud envelope and decodes data into
// out (when non-nil). The raw body is kept for diagnostics.
func (c *cloudClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.lastResponse = body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	if env.Code != 0 {
		return fmt.Errorf("cloud error %d: %s", env.Code, env.Msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// FindOperationalMode resolves a mode by a case-insensitive substring match on
// its label, e.g. "self-powered" -> "Maximum Self-Powered Mode".
func FindOperationalMode(modes []OperationalMode, name string) (OperationalMode, error) {
	needle := strings.ToLower(name)
	for _, mode := range modes {
		if strings.Contains(strings.ToLower(mode.Label), needle) {
			return mode, nil
		}
	}
	return OperationalMode{}, fmt.Errorf("%w: %q", ErrModeNotFound, name)
}
