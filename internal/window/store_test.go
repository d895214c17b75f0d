package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slemay/globedash/internal/events"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestRefreshEvictsBeyondHorizon(t *testing.T) {
	now := time.Date(2024, time.November, 29, 12, 0, 0, 0, time.UTC)
	s := NewStore[Ring](fixedClock(now))

	fresh := Ring{Lat: 1, Lng: 1, Timestamp: now.Add(-time.Second).UnixMilli()}
	stale := Ring{Lat: 2, Lng: 2, Timestamp: now.Add(-5 * time.Second).UnixMilli()}
	s.Refresh(10*time.Second, fresh, stale)
	require.Equal(t, 2, s.Len())

	incoming := Ring{Lat: 3, Lng: 3, Timestamp: now.UnixMilli()}
	s.Refresh(2*time.Second, incoming)

	retained := s.Snapshot()
	require.Len(t, retained, 2)
	horizonMillis := int64(2000)
	for _, r := range retained {
		assert.LessOrEqual(t, now.UnixMilli()-r.Timestamp, horizonMillis)
	}
}

func TestRefreshOnEmptyStoreIsNoop(t *testing.T) {
	s := NewStore[Arc](nil)
	s.Refresh(time.Second)
	assert.Zero(t, s.Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewStore[Arc](fixedClock(now))
	s.Refresh(time.Minute, Arc{Color: ArcColor, Timestamp: now.UnixMilli()})

	snap := s.Snapshot()
	snap[0].Color = "mutated"
	assert.Equal(t, ArcColor, s.Snapshot()[0].Color)
}

func TestLabelStoreDedupKeepsMostRecent(t *testing.T) {
	now := time.Date(2024, time.November, 29, 12, 0, 0, 0, time.UTC)
	s := NewLabelStore(fixedClock(now))

	older := Label{Lat: 1, Lng: 1, Text: "Paris", Timestamp: now.Add(-time.Second).UnixMilli()}
	s.Refresh(time.Minute, older)

	newer := Label{Lat: 9, Lng: 9, Text: "Paris", Timestamp: now.UnixMilli()}
	s.Refresh(time.Minute, newer, Label{Lat: 2, Lng: 2, Text: "Lyon", Timestamp: now.UnixMilli()})

	retained := s.Snapshot()
	require.Len(t, retained, 2)

	byText := map[string]Label{}
	for _, l := range retained {
		byText[l.Text] = l
	}
	require.Contains(t, byText, "Paris")
	assert.Equal(t, 9.0, byText["Paris"].Lat, "most recent duplicate wins")
}

func TestLabelStoreNeverHoldsDuplicateText(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewLabelStore(fixedClock(now))

	for i := 0; i < 5; i++ {
		s.Refresh(time.Minute,
			Label{Text: "Tokyo", Timestamp: now.UnixMilli()},
			Label{Text: "Osaka", Timestamp: now.UnixMilli()},
			Label{Text: "Tokyo", Timestamp: now.UnixMilli()},
		)
	}

	seen := map[string]int{}
	for _, l := range s.Snapshot() {
		seen[l.Text]++
	}
	for text, count := range seen {
		assert.Equal(t, 1, count, "text %q", text)
	}
}

func TestLabelStoreDropsEmptyAndNullText(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewLabelStore(fixedClock(now))

	s.Refresh(time.Minute,
		Label{Text: "", Timestamp: now.UnixMilli()},
		Label{Text: "null", Timestamp: now.UnixMilli()},
		Label{Text: "Berlin", Timestamp: now.UnixMilli()},
	)

	retained := s.Snapshot()
	require.Len(t, retained, 1)
	assert.Equal(t, "Berlin", retained[0].Text)
}

func TestSanitizeLabel(t *testing.T) {
	assert.Equal(t, "cafe", SanitizeLabel("café"))
	assert.Equal(t, "Sao Paulo", SanitizeLabel("São Paulo"))
	assert.Equal(t, "Zurich", SanitizeLabel("Zürich"))

	// Idempotent.
	once := SanitizeLabel("Montréal")
	assert.Equal(t, once, SanitizeLabel(once))
}

func TestBuildBatch(t *testing.T) {
	now := time.Date(2024, time.November, 29, 12, 0, 0, 0, time.UTC)

	byRegion := map[events.Region][]events.LiveEvent{
		events.RegionEUWest1: {
			{City: "Dublin", Lat: "53.34", Lng: "-6.26", Timestamp: now.Add(-time.Second).UnixMilli()},
			{City: "null", Lat: "48.85", Lng: "2.35", Timestamp: now.Add(-time.Second).UnixMilli()},
			{City: "Broken", Lat: "not-a-number", Lng: "0"},
		},
		events.Region("unmapped-1"): {
			{City: "Ghost", Lat: "0", Lng: "0"},
		},
	}

	batch := BuildBatch(byRegion, now)
	require.Len(t, batch.Visuals, 2)

	geo, _ := events.RegionEUWest1.Geo()
	for _, v := range batch.Visuals {
		assert.Equal(t, geo.Lat, v.Arc.EndLat)
		assert.Equal(t, geo.Lng, v.Arc.EndLng)
		assert.Equal(t, ArcColor, v.Arc.Color)
		assert.Equal(t, now.UnixMilli(), v.Arc.Timestamp)
		assert.Equal(t, v.Arc.StartLat, v.Ring.Lat)
	}

	var labels []string
	for _, v := range batch.Visuals {
		if v.Label != nil {
			labels = append(labels, v.Label.Text)
		}
	}
	assert.Equal(t, []string{"Dublin"}, labels, `events with empty or "null" city text carry no label`)
}
