package window

import (
	"log/slog"
	"time"

	"github.com/slemay/globedash/internal/events"
)

// ArcColor is the single color every travel arc is drawn with.
const ArcColor = "#8f7000"

// Arc connects an event's origin coordinate to its serving region's fixed
// coordinate.
type Arc struct {
	StartLat  float64 `json:"startLat"`
	StartLng  float64 `json:"startLng"`
	EndLat    float64 `json:"endLat"`
	EndLng    float64 `json:"endLng"`
	Color     string  `json:"color"`
	Timestamp int64   `json:"timestamp"`
}

func (a Arc) When() int64 { return a.Timestamp }

// Ring marks a pulse at an event's origin coordinate.
type Ring struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

func (r Ring) When() int64 { return r.Timestamp }

// Label attaches display text to a coordinate.
type Label struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Text      string  `json:"text"`
	Timestamp int64   `json:"timestamp"`
}

func (l Label) When() int64 { return l.Timestamp }

// Visual is the full set of renderables derived from one live event. The
// label is optional: events without usable city text produce none.
type Visual struct {
	Arc   Arc    `json:"arc"`
	Ring  Ring   `json:"ring"`
	Label *Label `json:"label,omitempty"`
}

// Batch is one tick's worth of derived visuals.
type Batch struct {
	Visuals []Visual `json:"visuals"`
}

// BuildBatch derives arcs, rings and labels from a tick's per-region event
// map. Events with unparsable coordinates are dropped; a region missing from
// the geo table is skipped wholesale (configured regions are validated at
// startup, so that path only triggers on rogue payload data).
func BuildBatch(byRegion map[events.Region][]events.LiveEvent, now time.Time) Batch {
	nowMillis := now.UnixMilli()

	var visuals []Visual
	for region, evs := range byRegion {
		end, ok := region.Geo()
		if !ok {
			slog.Warn("No coordinate for region, skipping its events", "region", region, "events", len(evs))
			continue
		}

		for _, ev := range evs {
			origin, err := ev.Coordinates()
			if err != nil {
				slog.Debug("Dropping event with bad coordinates", "region", region, "eventID", ev.EventID, "error", err)
				continue
			}

			v := Visual{
				Arc: Arc{
					StartLat:  origin.Lat,
					StartLng:  origin.Lng,
					EndLat:    end.Lat,
					EndLng:    end.Lng,
					Color:     ArcColor,
					Timestamp: nowMillis,
				},
				Ring: Ring{
					Lat:       origin.Lat,
					Lng:       origin.Lng,
					Timestamp: nowMillis,
				},
			}

			if usableLabelText(ev.City) {
				v.Label = &Label{
					Lat:       origin.Lat,
					Lng:       origin.Lng,
					Text:      SanitizeLabel(ev.City),
					Timestamp: nowMillis,
				}
			}

			visuals = append(visuals, v)
		}
	}

	return Batch{Visuals: visuals}
}

// usableLabelText filters out empty and literal "null" city names some
// endpoints emit.
func usableLabelText(text string) bool {
	return text != "" && text != "null"
}
