package metrics

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/shopspring/decimal"
)

// BucketType selects the pre-aggregation interval of a snapshot.
type BucketType string

const (
	BucketMinutely BucketType = "minutely"
	BucketDaily    BucketType = "daily"
)

// Minutely is one region's partial counters for a minute bucket. Absent
// fields stay at their zero values, which is exactly what aggregation wants.
type Minutely struct {
	AddToCart   int64           `json:"addToCart"`
	Purchases   int64           `json:"purchases"`
	Revenue     decimal.Decimal `json:"revenue"`
	UniqueUsers int64           `json:"uniqueUsers"`
}

// Daily is one region's partial counters for a calendar-day bucket.
type Daily struct {
	AddToCart           int64            `json:"addToCart"`
	Purchases           int64            `json:"purchases"`
	Revenue             decimal.Decimal  `json:"revenue"`
	PurchasesPerCountry map[string]int64 `json:"purchasesPerCountry"`
}

// EmptyDaily returns a zeroed daily snapshot with an allocated country map.
func EmptyDaily() Daily {
	return Daily{PurchasesPerCountry: map[string]int64{}}
}

// AggregateMinutely folds per-region minutely snapshots into a total via
// elementwise sum. Additive only: non-negative inputs cannot produce a
// negative total. AggregateMinutely(nil) is the zero total.
func AggregateMinutely(parts []Minutely) Minutely {
	var total Minutely
	for _, p := range parts {
		total.AddToCart += p.AddToCart
		total.Purchases += p.Purchases
		total.Revenue = total.Revenue.Add(p.Revenue)
		total.UniqueUsers += p.UniqueUsers
	}
	return total
}

// AggregateDaily folds per-region daily snapshots, merging the per-country
// purchase maps by summing counts under matching keys.
func AggregateDaily(parts []Daily) Daily {
	total := EmptyDaily()
	for _, p := range parts {
		total.AddToCart += p.AddToCart
		total.Purchases += p.Purchases
		total.Revenue = total.Revenue.Add(p.Revenue)
		for country, count := range p.PurchasesPerCountry {
			total.PurchasesPerCountry[country] += count
		}
	}
	return total
}

// metricRecord is the flat legacy metrics shape: one counter per element.
type metricRecord struct {
	Type           string          `json:"type"`
	Count          decimal.Decimal `json:"count"`
	TimeBucketType string          `json:"timeBucketType"`
}

// metricsWrapper is the current metrics shape.
type metricsWrapper struct {
	Metrics *json.RawMessage `json:"metrics"`
}

// ParseMinutely decodes a region's minutely metrics response. Two shapes are
// supported: an array of {type,count} records and a {metrics:{...}} wrapper
// with partial fields. Anything else is skipped defensively and parses as
// the zero snapshot rather than failing the cycle.
func ParseMinutely(raw []byte) Minutely {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Minutely{}
	}

	if trimmed[0] == '[' {
		var records []metricRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			slog.Debug("Skipping malformed minutely metric records", "error", err)
			return Minutely{}
		}
		var snap Minutely
		for _, r := range records {
			switch r.Type {
			case "addToCart":
				snap.AddToCart += countAsInt(r.Count)
			case "purchases":
				snap.Purchases += countAsInt(r.Count)
			case "revenue":
				snap.Revenue = snap.Revenue.Add(r.Count)
			case "uniqueUsers":
				snap.UniqueUsers += countAsInt(r.Count)
			}
		}
		return snap
	}

	var wrapper metricsWrapper
	if err := json.Unmarshal(trimmed, &wrapper); err != nil || wrapper.Metrics == nil {
		slog.Debug("Skipping non-array minutely metrics payload")
		return Minutely{}
	}
	var snap Minutely
	if err := json.Unmarshal(*wrapper.Metrics, &snap); err != nil {
		slog.Debug("Skipping malformed minutely metrics wrapper", "error", err)
		return Minutely{}
	}
	return snap
}

// ParseDaily decodes a region's daily metrics response, accepting the same
// two shapes as ParseMinutely.
func ParseDaily(raw []byte) Daily {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return EmptyDaily()
	}

	if trimmed[0] == '[' {
		var records []metricRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			slog.Debug("Skipping malformed daily metric records", "error", err)
			return EmptyDaily()
		}
		snap := EmptyDaily()
		for _, r := range records {
			switch r.Type {
			case "addToCart":
				snap.AddToCart += countAsInt(r.Count)
			case "purchases":
				snap.Purchases += countAsInt(r.Count)
			case "revenue":
				snap.Revenue = snap.Revenue.Add(r.Count)
			}
		}
		return snap
	}

	var wrapper metricsWrapper
	if err := json.Unmarshal(trimmed, &wrapper); err != nil || wrapper.Metrics == nil {
		slog.Debug("Skipping non-array daily metrics payload")
		return EmptyDaily()
	}
	snap := EmptyDaily()
	if err := json.Unmarshal(*wrapper.Metrics, &snap); err != nil {
		slog.Debug("Skipping malformed daily metrics wrapper", "error", err)
		return EmptyDaily()
	}
	if snap.PurchasesPerCountry == nil {
		snap.PurchasesPerCountry = map[string]int64{}
	}
	return snap
}

func countAsInt(d decimal.Decimal) int64 {
	return d.IntPart()
}
