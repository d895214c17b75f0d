package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/metrics"
	"github.com/slemay/globedash/internal/scheduler"
	"github.com/slemay/globedash/internal/view"
	"github.com/slemay/globedash/internal/window"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	sched := scheduler.New(scheduler.Options{
		Settings:   view.Defaults(),
		Aggregator: metrics.NewAggregator(metrics.NewHolidayCache(), nil),
	})

	s := NewServer(config.WebSettings{Host: "127.0.0.1", Port: 0}, view.Defaults(), sched, nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestVisualEndpointsReturnEmptyArrays(t *testing.T) {
	_, ts := newTestServer(t)

	var arcs map[string][]window.Arc
	getJSON(t, ts.URL+"/api/arcs", &arcs)
	require.Contains(t, arcs, "arcs")
	assert.NotNil(t, arcs["arcs"])
	assert.Empty(t, arcs["arcs"])

	var rings map[string][]window.Ring
	getJSON(t, ts.URL+"/api/rings", &rings)
	assert.Empty(t, rings["rings"])

	var labels map[string][]window.Label
	getJSON(t, ts.URL+"/api/labels", &labels)
	assert.Empty(t, labels["labels"])
}

func TestTotalsEndpointPairsCurrentAndPrevious(t *testing.T) {
	_, ts := newTestServer(t)

	var body totalsResponse
	getJSON(t, ts.URL+"/api/totals", &body)
	assert.False(t, body.Current.PromoActive)
	assert.Equal(t, "0", body.Current.Daily.Revenue.String())
}

func TestViewEndpointEchoesSettings(t *testing.T) {
	_, ts := newTestServer(t)

	var body struct {
		Settings view.Settings `json:"settings"`
		Query    string        `json:"query"`
	}
	getJSON(t, ts.URL+"/api/view", &body)
	assert.Equal(t, view.Defaults(), body.Settings)
	assert.Contains(t, body.Query, "tickSpeed=1000")
}

func TestStatusEndpointStartsInitializing(t *testing.T) {
	s, ts := newTestServer(t)

	var status StatusInfo
	getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, StatusInitializing, status.Status)

	s.GetStatusBroadcaster().SetStatus(StatusRunning, "Polling 2 regions")

	getJSON(t, ts.URL+"/api/status", &status)
	assert.Equal(t, StatusRunning, status.Status)
	assert.Equal(t, "Polling 2 regions", status.Message)
}

func TestVisualEndpointsRejectPost(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/arcs", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestBasicAuthMiddleware(t *testing.T) {
	t.Setenv("DASHBOARD_USERNAME", "admin")
	t.Setenv("DASHBOARD_PASSWORD", "secret")

	s, _ := newTestServer(t)
	ts := httptest.NewServer(basicAuthMiddleware(s.Routes()))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeedHubBroadcastsBatches(t *testing.T) {
	hub := NewFeedHub()
	defer hub.Close()

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleFeed))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	batch := window.Batch{Visuals: []window.Visual{{
		Arc: window.Arc{StartLat: 53.35, StartLng: -6.26, EndLat: 53.35, EndLng: 6.26, Color: window.ArcColor, Timestamp: 1},
	}}}
	hub.BroadcastBatch(batch)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got window.Batch
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Len(t, got.Visuals, 1)
	assert.Equal(t, window.ArcColor, got.Visuals[0].Arc.Color)
}

func TestFeedHubSkipsEmptyBatches(t *testing.T) {
	hub := NewFeedHub()
	defer hub.Close()

	// Must not panic or allocate work with no clients and nothing to send.
	hub.BroadcastBatch(window.Batch{})
	assert.Zero(t, hub.ClientCount())
}
