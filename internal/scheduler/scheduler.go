package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slemay/globedash/internal/events"
	"github.com/slemay/globedash/internal/metrics"
	"github.com/slemay/globedash/internal/poller"
	"github.com/slemay/globedash/internal/view"
	"github.com/slemay/globedash/internal/window"
)

// Notifier receives region health transitions.
type Notifier interface {
	NotifyRegionDown(region events.Region, reason error)
	NotifyRegionRecovered(region events.Region)
}

// Scheduler drives the two refresh loops: the per-tick event cycle that
// feeds the windowed visual stores, and the slower metrics refresh that
// feeds the aggregator.
//
// Each tick starts its own cycle goroutine; a slow upstream makes cycles
// overlap rather than delaying the next tick. The stores tolerate that.
type Scheduler struct {
	poller     *poller.Poller
	settings   view.Settings
	aggregator *metrics.Aggregator

	arcs   *window.Store[window.Arc]
	rings  *window.Store[window.Ring]
	labels *window.LabelStore

	metricsRefresh   time.Duration
	failureThreshold int
	notifier         Notifier

	// onBatch, when set, receives each cycle's derived visuals before
	// staggered insertion begins.
	onBatch func(window.Batch)

	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time

	mu        sync.RWMutex
	failures  map[events.Region]int
	latencies map[events.Region]float64
}

type Options struct {
	Poller           *poller.Poller
	Settings         view.Settings
	Aggregator       *metrics.Aggregator
	MetricsRefresh   time.Duration
	FailureThreshold int
	Notifier         Notifier
	OnBatch          func(window.Batch)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

func New(opts Options) *Scheduler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		poller:           opts.Poller,
		settings:         opts.Settings,
		aggregator:       opts.Aggregator,
		arcs:             window.NewStore[window.Arc](now),
		rings:            window.NewStore[window.Ring](now),
		labels:           window.NewLabelStore(now),
		metricsRefresh:   opts.MetricsRefresh,
		failureThreshold: opts.FailureThreshold,
		notifier:         opts.Notifier,
		onBatch:          opts.OnBatch,
		now:              now,
		failures:         make(map[events.Region]int),
		latencies:        make(map[events.Region]float64),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	go s.tickLoop()
	go s.metricsLoop()
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// TickSpeed returns the configured tick interval.
func (s *Scheduler) TickSpeed() time.Duration {
	return time.Duration(s.settings.TickSpeed) * time.Millisecond
}

// FlightTime returns the configured arc travel time.
func (s *Scheduler) FlightTime() time.Duration {
	return time.Duration(s.settings.FlightTime) * time.Millisecond
}

// arcHorizon covers an arc's full travel plus one tick of slack so an arc
// mid-flight is never evicted out from under the renderer.
func (s *Scheduler) arcHorizon() time.Duration {
	return s.FlightTime() + s.TickSpeed()
}

// ringHorizon is shorter: a ring pulse only lives for the fraction of the
// flight the dash occupies.
func (s *Scheduler) ringHorizon() time.Duration {
	return time.Duration(float64(s.FlightTime()) * s.settings.ArcRelLength)
}

func (s *Scheduler) tickLoop() {
	ticker := time.NewTicker(s.TickSpeed())
	defer ticker.Stop()

	// First cycle immediately, then on the ticker.
	go s.runCycle()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			go s.runCycle()
		}
	}
}

// runCycle polls all regions once and feeds the visual stores. Insertions
// are staggered evenly across the tick so the globe fills smoothly instead
// of in bursts; shutdown cancels the remainder of the group.
func (s *Scheduler) runCycle() {
	results := s.poller.Poll(s.ctx, s.TickSpeed())
	s.trackHealth(results)

	latencies := s.poller.Latencies(results)
	s.mu.Lock()
	s.latencies = latencies
	s.mu.Unlock()

	batch := window.BuildBatch(poller.ByRegion(results), s.now())
	if max := s.settings.NumAnimations; max > 0 && len(batch.Visuals) > max {
		slog.Debug("Capping cycle batch", "visuals", len(batch.Visuals), "max", max)
		batch.Visuals = batch.Visuals[:max]
	}

	if s.onBatch != nil {
		s.onBatch(batch)
	}

	if len(batch.Visuals) == 0 {
		// Still evict: a quiet tick must not freeze stale visuals in place.
		s.arcs.Evict(s.arcHorizon())
		s.rings.Evict(s.ringHorizon())
		s.labels.Refresh(s.arcHorizon())
		return
	}

	sleepBetween := s.TickSpeed() / time.Duration(len(batch.Visuals))

	for i, v := range batch.Visuals {
		if s.settings.RenderArcs {
			s.arcs.Refresh(s.arcHorizon(), v.Arc)
		}
		if s.settings.RenderRings {
			s.rings.Refresh(s.ringHorizon(), v.Ring)
		}
		if s.settings.RenderLabels && v.Label != nil {
			s.labels.Refresh(s.arcHorizon(), *v.Label)
		}

		if i == len(batch.Visuals)-1 {
			break
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(sleepBetween):
		}
	}
}

func (s *Scheduler) metricsLoop() {
	ticker := time.NewTicker(s.metricsRefresh)
	defer ticker.Stop()

	s.refreshMetrics()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refreshMetrics()
		}
	}
}

// refreshMetrics pulls the last completed minute bucket and today's daily
// bucket from every region and folds them into the aggregator.
func (s *Scheduler) refreshMetrics() {
	now := s.now()

	// The current minute is still being written upstream; read the one
	// before it.
	bucket := now.Add(-time.Minute).Truncate(time.Minute)

	minutely := s.poller.FetchMinutely(s.ctx, bucket)
	daily := s.poller.FetchDaily(s.ctx, now)

	totals := s.aggregator.Fold(s.ctx, minutely, daily, s.poller.FetchDailyTotal)
	slog.Debug("Refreshed metric totals",
		"purchases", totals.Minutely.Purchases,
		"revenue", totals.Daily.Revenue,
		"promoActive", totals.PromoActive,
	)
}

// trackHealth counts consecutive failures per region and fires a
// notification when a region crosses the threshold, and another when it
// recovers.
func (s *Scheduler) trackHealth(results []poller.Result) {
	threshold := s.failureThreshold
	if threshold <= 0 {
		return
	}

	type transition struct {
		region    events.Region
		recovered bool
		reason    error
	}
	var transitions []transition

	s.mu.Lock()
	for _, r := range results {
		if r.Err != nil {
			s.failures[r.Region]++
			if s.failures[r.Region] == threshold {
				transitions = append(transitions, transition{region: r.Region, reason: r.Err})
			}
			continue
		}
		if s.failures[r.Region] >= threshold {
			transitions = append(transitions, transition{region: r.Region, recovered: true})
		}
		s.failures[r.Region] = 0
	}
	s.mu.Unlock()

	for _, t := range transitions {
		if t.recovered {
			slog.Info("Region recovered", "region", t.region)
			if s.notifier != nil {
				s.notifier.NotifyRegionRecovered(t.region)
			}
		} else {
			slog.Warn("Region marked down", "region", t.region, "error", t.reason)
			if s.notifier != nil {
				s.notifier.NotifyRegionDown(t.region, t.reason)
			}
		}
	}
}

// Arcs returns the currently retained arcs.
func (s *Scheduler) Arcs() []window.Arc { return s.arcs.Snapshot() }

// Rings returns the currently retained rings.
func (s *Scheduler) Rings() []window.Ring { return s.rings.Snapshot() }

// Labels returns the currently retained labels.
func (s *Scheduler) Labels() []window.Label { return s.labels.Snapshot() }

// Totals returns the current and previous metric totals.
func (s *Scheduler) Totals() (current, previous metrics.Totals) {
	return s.aggregator.Snapshot()
}

// Latencies returns the most recent per-region propagation delays.
func (s *Scheduler) Latencies() map[events.Region]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[events.Region]float64, len(s.latencies))
	for region, v := range s.latencies {
		out[region] = v
	}
	return out
}
