package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/events"
	"github.com/slemay/globedash/internal/metrics"
	"github.com/slemay/globedash/internal/poller"
	"github.com/slemay/globedash/internal/view"
	"github.com/slemay/globedash/internal/window"
)

type recordingNotifier struct {
	mu        sync.Mutex
	down      []events.Region
	recovered []events.Region
}

func (n *recordingNotifier) NotifyRegionDown(region events.Region, reason error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.down = append(n.down, region)
}

func (n *recordingNotifier) NotifyRegionRecovered(region events.Region) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recovered = append(n.recovered, region)
}

func TestHorizonsFollowViewSettings(t *testing.T) {
	s := New(Options{Settings: view.Settings{
		TickSpeed:    1000,
		FlightTime:   2000,
		ArcRelLength: 0.5,
	}})

	assert.Equal(t, 3*time.Second, s.arcHorizon())
	assert.Equal(t, time.Second, s.ringHorizon())
}

func TestTrackHealthFiresOnceAtThreshold(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(Options{FailureThreshold: 2, Notifier: notifier})

	failing := []poller.Result{{Region: events.RegionUSEast1, Err: assert.AnError}}

	s.trackHealth(failing)
	assert.Empty(t, notifier.down, "one failure is below the threshold")

	s.trackHealth(failing)
	require.Len(t, notifier.down, 1)
	assert.Equal(t, events.RegionUSEast1, notifier.down[0])

	s.trackHealth(failing)
	assert.Len(t, notifier.down, 1, "staying down does not re-notify")

	s.trackHealth([]poller.Result{{Region: events.RegionUSEast1}})
	require.Len(t, notifier.recovered, 1)
	assert.Equal(t, events.RegionUSEast1, notifier.recovered[0])

	// A fresh single failure after recovery starts the count over.
	s.trackHealth(failing)
	assert.Len(t, notifier.down, 1)
}

func TestRecoveryBelowThresholdIsSilent(t *testing.T) {
	notifier := &recordingNotifier{}
	s := New(Options{FailureThreshold: 3, Notifier: notifier})

	failing := []poller.Result{{Region: events.RegionEUWest1, Err: assert.AnError}}
	s.trackHealth(failing)
	s.trackHealth([]poller.Result{{Region: events.RegionEUWest1}})

	assert.Empty(t, notifier.down)
	assert.Empty(t, notifier.recovered)
}

func TestRunCycleFillsStoresWithStaggeredBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"city":"Dublin","country":"IE","lat":"53.35","lng":"-6.26","region":"eu-west-1","timestamp":1700000000000,"type":"pageView"},
			{"city":"Cork","country":"IE","lat":"51.90","lng":"-8.47","region":"eu-west-1","timestamp":1700000001000,"type":"pageView"},
			{"city":"Galway","country":"IE","lat":"53.27","lng":"-9.06","region":"eu-west-1","timestamp":1700000002000,"type":"pageView"},
			{"city":"Limerick","country":"IE","lat":"52.66","lng":"-8.63","region":"eu-west-1","timestamp":1700000003000,"type":"pageView"},
			{"city":"Waterford","country":"IE","lat":"52.26","lng":"-7.11","region":"eu-west-1","timestamp":1700000004000,"type":"pageView"}
		]`))
	}))
	defer srv.Close()

	p := poller.New([]config.RegionEndpoint{
		{Region: events.RegionEUWest1, Endpoint: srv.URL},
	}, 5*time.Second, nil, nil)

	var batches []window.Batch
	s := New(Options{
		Poller: p,
		Settings: view.Settings{
			TickSpeed:     250,
			FlightTime:    2000,
			ArcRelLength:  0.5,
			NumAnimations: 3,
			RenderArcs:    true,
			RenderRings:   true,
			RenderLabels:  true,
		},
		OnBatch: func(b window.Batch) { batches = append(batches, b) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.runCycle()

	assert.Len(t, s.Arcs(), 3, "batch is capped at the animation budget")
	assert.Len(t, s.Rings(), 3)
	assert.Len(t, s.Labels(), 3, "distinct cities all survive dedup")

	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Visuals, 3)

	latencies := s.Latencies()
	assert.Contains(t, latencies, events.RegionEUWest1)
}

func TestRunCycleWithDisabledLayersKeepsStoresEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"city":"Dublin","country":"IE","lat":"53.35","lng":"-6.26","region":"eu-west-1","timestamp":1700000000000,"type":"pageView"}]`))
	}))
	defer srv.Close()

	p := poller.New([]config.RegionEndpoint{
		{Region: events.RegionEUWest1, Endpoint: srv.URL},
	}, 5*time.Second, nil, nil)

	s := New(Options{
		Poller: p,
		Settings: view.Settings{
			TickSpeed:    250,
			FlightTime:   2000,
			ArcRelLength: 0.5,
			RenderArcs:   false,
			RenderRings:  false,
			RenderLabels: false,
		},
	})

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
	defer s.Stop()

	s.runCycle()

	assert.Empty(t, s.Arcs())
	assert.Empty(t, s.Rings())
	assert.Empty(t, s.Labels())
}

func TestSchedulerMetricsRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("timeBucketType") {
		case "minutely":
			w.Write([]byte(`{"metrics":{"purchases":4,"revenue":"20"}}`))
		case "daily":
			w.Write([]byte(`{"metrics":{"purchases":40,"revenue":"200"}}`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	p := poller.New([]config.RegionEndpoint{
		{Region: events.RegionUSEast1, Endpoint: srv.URL},
	}, 5*time.Second, nil, nil)

	// A date far from any promotional window keeps the fold simple.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(Options{
		Poller:     p,
		Settings:   view.Settings{TickSpeed: 1000, FlightTime: 2000, ArcRelLength: 0.5},
		Aggregator: metrics.NewAggregator(metrics.NewHolidayCache(), func() time.Time { return now }),
		Now:        func() time.Time { return now },
	})

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
	defer s.Stop()

	s.refreshMetrics()

	current, _ := s.Totals()
	assert.Equal(t, int64(4), current.Minutely.Purchases)
	assert.Equal(t, "200", current.Daily.Revenue.String())
	assert.False(t, current.PromoActive)
}
