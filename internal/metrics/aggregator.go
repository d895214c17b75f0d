package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// PromoWindowDays is the span of the promotional accumulation window in
// calendar days, anchored on Black Friday. Day 0 is the anchor itself and
// day 3 is Cyber Monday.
const PromoWindowDays = 4

// Totals is the merged view across regions for the current buckets, plus the
// optional promotional-window revenue accumulation.
type Totals struct {
	Minutely Minutely `json:"minutely"`
	Daily    Daily    `json:"daily"`

	// PromoRevenue is the multi-day rolling revenue total. Only meaningful
	// while PromoActive; outside the window it is not computed.
	PromoRevenue decimal.Decimal `json:"promoRevenue"`
	PromoActive  bool            `json:"promoActive"`

	RefreshedAt time.Time `json:"refreshedAt"`
}

// DailyFetcher loads the aggregated daily snapshot for a past calendar day
// (UTC). Used to backfill the promotional window.
type DailyFetcher func(ctx context.Context, day time.Time) (Daily, error)

// Aggregator folds per-region snapshots into running totals. Totals are
// recomputed wholesale every cycle; the previous value is retained only so
// the presentation can animate the transition.
//
// Past in-window days' totals are cached after the first fetch: a finished
// day's counters are immutable upstream.
type Aggregator struct {
	mu       sync.RWMutex
	holidays *HolidayCache
	now      func() time.Time

	pastDays map[string]Daily

	current  Totals
	previous Totals
}

// NewAggregator creates an aggregator with the given injected holiday cache.
// A nil clock means time.Now.
func NewAggregator(holidays *HolidayCache, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		holidays: holidays,
		now:      now,
		pastDays: make(map[string]Daily),
		current:  Totals{Daily: EmptyDaily()},
		previous: Totals{Daily: EmptyDaily()},
	}
}

// PromoWindow reports whether day falls inside the promotional window and,
// if so, the anchor date and the zero-based day index within the window.
func (a *Aggregator) PromoWindow(day time.Time) (anchor time.Time, dayIndex int, inside bool) {
	anchor = a.holidays.BlackFriday(day.UTC().Year())
	dayIndex = DayDiff(anchor, day.UTC())
	inside = dayIndex >= 0 && dayIndex < PromoWindowDays
	return anchor, dayIndex, inside
}

// Fold replaces the running totals with the elementwise sum of this cycle's
// per-region snapshots. While the promotional window is active, fetchDay is
// consulted for each in-window day strictly before today (at most once per
// day ever, results are cached) and the window revenue is the sum of those
// days plus today's live daily total.
func (a *Aggregator) Fold(ctx context.Context, minutely []Minutely, daily []Daily, fetchDay DailyFetcher) Totals {
	now := a.now()

	totals := Totals{
		Minutely:    AggregateMinutely(minutely),
		Daily:       AggregateDaily(daily),
		RefreshedAt: now,
	}

	if anchor, dayIndex, inside := a.PromoWindow(now); inside {
		totals.PromoActive = true
		totals.PromoRevenue = totals.Daily.Revenue
		for i := 0; i < dayIndex; i++ {
			past := a.pastDay(ctx, anchor.AddDate(0, 0, i), fetchDay)
			totals.PromoRevenue = totals.PromoRevenue.Add(past.Revenue)
		}
	}

	a.mu.Lock()
	a.previous = a.current
	a.current = totals
	a.mu.Unlock()

	return totals
}

// Snapshot returns the current totals and the previous cycle's, for count-up
// style transitions.
func (a *Aggregator) Snapshot() (current, previous Totals) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current, a.previous
}

func (a *Aggregator) pastDay(ctx context.Context, day time.Time, fetchDay DailyFetcher) Daily {
	key := day.UTC().Format("2006-01-02")

	a.mu.RLock()
	cached, ok := a.pastDays[key]
	a.mu.RUnlock()
	if ok {
		return cached
	}

	if fetchDay == nil {
		return EmptyDaily()
	}

	fetched, err := fetchDay(ctx, day)
	if err != nil {
		// Not cached: the next cycle is the retry.
		slog.Warn("Failed to backfill promotional-window day", "day", key, "error", err)
		return EmptyDaily()
	}
	slog.Debug("Backfilled promotional-window day", "day", key, "revenue", fetched.Revenue)

	a.mu.Lock()
	a.pastDays[key] = fetched
	a.mu.Unlock()
	return fetched
}
