package poller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/events"
	"github.com/slemay/globedash/internal/metrics"
)

// Result is the outcome of polling one region. Events is nil when Err is
// set; callers substitute an empty batch so one region cannot stall the rest.
type Result struct {
	Region events.Region
	Events []events.LiveEvent
	Err    error
}

// Poller fetches live events and metric snapshots from the configured
// regional endpoints. Regions are fetched in parallel and fail independently.
type Poller struct {
	client     *http.Client
	regions    []config.RegionEndpoint
	credential func() string
	now        func() time.Time
}

// New creates a poller over the given regions. credential is consulted per
// request so a rotated credential takes effect without a restart. A nil
// clock means time.Now.
func New(regions []config.RegionEndpoint, timeout time.Duration, credential func() string, now func() time.Time) *Poller {
	if credential == nil {
		credential = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Poller{
		client:     &http.Client{Timeout: timeout},
		regions:    regions,
		credential: credential,
		now:        now,
	}
}

// Poll fetches events newer than the window from every region concurrently.
// The returned slice has one result per configured region, in configuration
// order. A region's failure is recorded in its result, never returned.
func (p *Poller) Poll(ctx context.Context, window time.Duration) []Result {
	results := make([]Result, len(p.regions))

	var wg sync.WaitGroup
	for i, re := range p.regions {
		wg.Add(1)
		go func(i int, re config.RegionEndpoint) {
			defer wg.Done()

			batch, err := p.fetchRegion(ctx, re, window)
			results[i] = Result{Region: re.Region, Events: batch, Err: err}
			if err != nil {
				slog.Warn("Region poll failed", "region", re.Region, "error", err)
			}
		}(i, re)
	}
	wg.Wait()

	return results
}

// ByRegion collapses poll results into the per-region batches the visual
// layer consumes. Failed regions contribute an empty batch.
func ByRegion(results []Result) map[events.Region][]events.LiveEvent {
	byRegion := make(map[events.Region][]events.LiveEvent, len(results))
	for _, r := range results {
		if r.Err != nil {
			byRegion[r.Region] = nil
			continue
		}
		byRegion[r.Region] = r.Events
	}
	return byRegion
}

func (p *Poller) fetchRegion(ctx context.Context, re config.RegionEndpoint, window time.Duration) ([]events.LiveEvent, error) {
	u, err := url.Parse(re.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("password", p.credential())
	q.Set("last", strconv.FormatInt(window.Milliseconds(), 10))
	u.RawQuery = q.Encode()

	body, err := p.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	batch, err := events.Normalize(body)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// FetchMinutely fetches every region's minutely snapshot for the given
// bucket. Failed regions parse as the zero snapshot and are logged.
func (p *Poller) FetchMinutely(ctx context.Context, bucket time.Time) []metrics.Minutely {
	bucketValue := bucket.UTC().Truncate(time.Minute).Format(time.RFC3339)

	snapshots := make([]metrics.Minutely, len(p.regions))
	var wg sync.WaitGroup
	for i, re := range p.regions {
		wg.Add(1)
		go func(i int, re config.RegionEndpoint) {
			defer wg.Done()

			body, err := p.fetchMetrics(ctx, re, bucketValue, metrics.BucketMinutely)
			if err != nil {
				slog.Warn("Minutely metrics fetch failed", "region", re.Region, "error", err)
				return
			}
			snapshots[i] = metrics.ParseMinutely(body)
		}(i, re)
	}
	wg.Wait()

	return snapshots
}

// FetchDaily fetches every region's daily snapshot for the given calendar
// day (UTC).
func (p *Poller) FetchDaily(ctx context.Context, day time.Time) []metrics.Daily {
	bucketValue := day.UTC().Format("2006-01-02")

	snapshots := make([]metrics.Daily, len(p.regions))
	var wg sync.WaitGroup
	for i, re := range p.regions {
		wg.Add(1)
		go func(i int, re config.RegionEndpoint) {
			defer wg.Done()

			snapshots[i] = metrics.EmptyDaily()
			body, err := p.fetchMetrics(ctx, re, bucketValue, metrics.BucketDaily)
			if err != nil {
				slog.Warn("Daily metrics fetch failed", "region", re.Region, "error", err)
				return
			}
			snapshots[i] = metrics.ParseDaily(body)
		}(i, re)
	}
	wg.Wait()

	return snapshots
}

// FetchDailyTotal is a DailyFetcher: it aggregates all regions' daily
// snapshots for the given day. An error is returned only when every region
// fails, so a transient single-region outage does not poison the backfill.
func (p *Poller) FetchDailyTotal(ctx context.Context, day time.Time) (metrics.Daily, error) {
	bucketValue := day.UTC().Format("2006-01-02")

	snapshots := make([]metrics.Daily, len(p.regions))
	errs := make([]error, len(p.regions))
	var wg sync.WaitGroup
	for i, re := range p.regions {
		wg.Add(1)
		go func(i int, re config.RegionEndpoint) {
			defer wg.Done()

			snapshots[i] = metrics.EmptyDaily()
			body, err := p.fetchMetrics(ctx, re, bucketValue, metrics.BucketDaily)
			if err != nil {
				errs[i] = err
				return
			}
			snapshots[i] = metrics.ParseDaily(body)
		}(i, re)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if len(p.regions) > 0 && failed == len(p.regions) {
		return metrics.EmptyDaily(), fmt.Errorf("all %d regions failed, first error: %w", failed, firstError(errs))
	}

	return metrics.AggregateDaily(snapshots), nil
}

func (p *Poller) fetchMetrics(ctx context.Context, re config.RegionEndpoint, bucketValue string, bucketType metrics.BucketType) ([]byte, error) {
	u, err := url.Parse(re.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	q.Set("password", p.credential())
	q.Set("timeBucket", bucketValue)
	q.Set("timeBucketType", string(bucketType))
	u.RawQuery = q.Encode()

	return p.get(ctx, u.String())
}

func (p *Poller) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}

// Latencies derives the per-region propagation delay in seconds: now minus
// the mean event timestamp. A failed or empty region is represented by a
// synthetic placeholder event stamped now, which reads as zero latency and
// keeps the region present in the output.
func (p *Poller) Latencies(results []Result) map[events.Region]float64 {
	now := p.now()
	nowMillis := now.UnixMilli()

	latencies := make(map[events.Region]float64, len(results))
	for _, r := range results {
		batch := r.Events
		if r.Err != nil || len(batch) == 0 {
			batch = []events.LiveEvent{placeholderEvent(r.Region, nowMillis)}
		}

		var sum int64
		for _, ev := range batch {
			sum += ev.Timestamp
		}
		mean := sum / int64(len(batch))
		latencies[r.Region] = float64(nowMillis-mean) / 1000.0
	}
	return latencies
}

func placeholderEvent(region events.Region, nowMillis int64) events.LiveEvent {
	return events.LiveEvent{
		EventID:   uuid.NewString(),
		Region:    region,
		Timestamp: nowMillis,
		Type:      "placeholder",
	}
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
