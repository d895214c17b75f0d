package events

import (
	"fmt"
	"strconv"
)

// Environment selects which set of regional poll endpoints is active.
type Environment string

const (
	EnvDev Environment = "dev"
	EnvStg Environment = "stg"
	EnvPrd Environment = "prd"
)

// NormalizeEnvironment coerces an arbitrary string to a known environment,
// falling back to production.
func NormalizeEnvironment(value string) Environment {
	switch Environment(value) {
	case EnvDev, EnvStg, EnvPrd:
		return Environment(value)
	default:
		return EnvPrd
	}
}

// Region identifies a serving region with a fixed reference coordinate.
type Region string

const (
	RegionUSEast1      Region = "us-east-1"
	RegionUSEast2      Region = "us-east-2"
	RegionEUWest1      Region = "eu-west-1"
	RegionAPSoutheast2 Region = "ap-southeast-2"
	RegionCACentral1   Region = "ca-central-1"
)

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// regionGeo pins every known region to the coordinate arcs terminate at.
var regionGeo = map[Region]Coordinate{
	RegionUSEast1:      {Lat: 37.926868, Lng: -78.024902},
	RegionUSEast2:      {Lat: 39.962222, Lng: -83.000556},
	RegionEUWest1:      {Lat: 53.350140, Lng: 6.2603},
	RegionAPSoutheast2: {Lat: -33.865143, Lng: 151.2099},
	RegionCACentral1:   {Lat: 45.502079010009766, Lng: -73.56201171875},
}

// Geo returns the region's fixed coordinate. The second return is false for
// regions outside the known set; configured regions are validated against
// this table at startup so a live lookup never misses.
func (r Region) Geo() (Coordinate, bool) {
	c, ok := regionGeo[r]
	return c, ok
}

// Known reports whether the region is part of the known set.
func (r Region) Known() bool {
	_, ok := regionGeo[r]
	return ok
}

// LiveEvent is one observed user action as returned by a regional endpoint.
// Latitude and longitude arrive as numeric strings on the wire.
type LiveEvent struct {
	City          string `json:"city"`
	Country       string `json:"country"`
	EventType     string `json:"eventType"`
	EventID       string `json:"event_id"`
	InsertedAt    int64  `json:"inserted_at"`
	Lat           string `json:"lat"`
	Lng           string `json:"lng"`
	Region        Region `json:"region"`
	Timestamp     int64  `json:"timestamp"`
	Type          string `json:"type"`
	ProductAction string `json:"productAction,omitempty"`
	Price         Number `json:"price,omitempty"`
}

// Coordinates parses the wire lat/lng strings into a Coordinate.
func (e LiveEvent) Coordinates() (Coordinate, error) {
	lat, err := strconv.ParseFloat(e.Lat, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid latitude %q: %w", e.Lat, err)
	}
	lng, err := strconv.ParseFloat(e.Lng, 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("invalid longitude %q: %w", e.Lng, err)
	}
	return Coordinate{Lat: lat, Lng: lng}, nil
}
