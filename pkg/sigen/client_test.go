package sigen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegionBaseURL(t *testing.T) {
	assert := assert.New(t)

	u, err := regionBaseURL("eu")
	assert.NoError(err)
	assert.Equal("https://api-eu.sigencloud.com/", u)

	u, err = regionBaseURL("APAC")
	assert.NoError(err)
	assert.Equal("https://api-apac.sigencloud.com/", u)

	_, err = regionBaseURL("atlantis")
	assert.Error(err)
}

func TestInitializeAndEnergyFlow(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+tokenPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(http.MethodPost, r.Method)
		require.NoError(r.ParseForm())
		require.Equal("homer", r.PostForm.Get("userAccount"))
		require.NotEmpty(r.PostForm.Get("userPwd"))
		writeEnvelope(w, map[string]any{
			"access_token":  "token-1",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/"+stationPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("Bearer token-1", r.Header.Get("Authorization"))
		writeEnvelope(w, map[string]any{"stationId": 424242})
	})
	mux.HandleFunc("/"+energyFlowPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("424242", r.URL.Query().Get("id"))
		writeEnvelope(w, map[string]any{
			"batterySoc":   81.5,
			"batteryPower": -350.0,
			"pvPower":      1200.0,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testCloudClient(server.URL)
	require.NoError(c.Initialize(context.Background()))
	require.Equal("424242", c.StationID())

	flow, err := c.GetEnergyFlow(context.Background())
	require.NoError(err)
	require.NotNil(flow)
	require.NotNil(flow.BatterySoc)
	assert.EqualValues(t, 81.5, *flow.BatterySoc)
	require.NotNil(flow.BatteryPower)
	assert.EqualValues(t, -350, *flow.BatteryPower)
	assert.Nil(t, flow.LoadPower)
}

func TestEnergyFlowNullData(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+energyFlowPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":null}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testCloudClient(server.URL)

	flow, err := c.GetEnergyFlow(context.Background())
	require.NoError(err)
	require.Nil(flow)
}

func TestEnergyFlowNonNumericFields(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+energyFlowPath, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]any{
			"batterySoc":   "--",
			"batteryPower": 420.0,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testCloudClient(server.URL)

	flow, err := c.GetEnergyFlow(context.Background())
	require.NoError(err)
	require.NotNil(flow)
	require.Nil(flow.BatterySoc, "non-numeric SOC must decode to unknown")
	require.NotNil(flow.BatteryPower)
	require.EqualValues(420, *flow.BatteryPower)
}

func TestCloudErrorCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+energyFlowPath, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":401,"msg":"token expired","data":null}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := testCloudClient(server.URL)

	_, err := c.GetEnergyFlow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestFindOperationalMode(t *testing.T) {
	assert := assert.New(t)

	modes := []OperationalMode{
		{Label: "Sigen AI Mode", Value: "1"},
		{Label: "Maximum Self-Powered Mode", Value: "2"},
		{Label: "Time-of-Use Mode", Value: "5"},
	}

	mode, err := FindOperationalMode(modes, "self-powered")
	assert.NoError(err)
	assert.Equal("2", mode.Value)

	mode, err = FindOperationalMode(modes, "TIME-OF-USE")
	assert.NoError(err)
	assert.Equal("5", mode.Value)

	_, err = FindOperationalMode(modes, "vacation")
	assert.True(errors.Is(err, ErrModeNotFound))
}

func testCloudClient(serverURL string) *cloudClient {
	return &cloudClient{
		client:      &http.Client{Timeout: 5 * time.Second},
		baseURL:     serverURL + "/",
		username:    "homer",
		md5Password: "d41d8cd98f00b204e9800998ecf8427e",
		accessToken: "token-1",
		tokenExpiry: time.Now().Add(time.Hour),
		stationID:   "424242",
		logger:      zap.NewNop(),
	}
}

func writeEnvelope(w http.ResponseWriter, data any) {
	payload, _ := json.Marshal(map[string]any{"code": 0, "msg": "success", "data": data})
	_, _ = w.Write(payload)
}
