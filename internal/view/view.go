package view

import (
	"net/url"
	"strconv"

	"github.com/slemay/globedash/internal/events"
)

// Settings is the complete view configuration. It lives in a URL query
// string and nowhere else; the defaults below apply to any absent key.
type Settings struct {
	RenderRings  bool
	RenderArcs   bool
	RenderLabels bool
	Animate      bool
	Rotate       bool
	Debug        bool

	TickSpeed          int // millis between polling ticks
	NumAnimations      int
	FlightTime         int // millis an arc travels
	ArcRelLength       float64
	RingRadius         float64
	RingSpeed          float64
	NumRings           int
	ArcDashGap         float64
	ArcAltitude        float64
	AtmosphereAltitude float64

	Env events.Environment
}

func Defaults() Settings {
	return Settings{
		RenderRings:        false,
		RenderArcs:         true,
		RenderLabels:       false,
		Animate:            true,
		Rotate:             true,
		Debug:              false,
		TickSpeed:          1000,
		NumAnimations:      50,
		FlightTime:         2000,
		ArcRelLength:       0.5,
		RingRadius:         3,
		RingSpeed:          5,
		NumRings:           1,
		ArcDashGap:         2,
		ArcAltitude:        0.5,
		AtmosphereAltitude: 0.2,
		Env:                events.EnvPrd,
	}
}

// FromQuery decodes settings from a query string, falling back to defaults
// for absent or unparsable values. An unknown env falls back to prd.
func FromQuery(q url.Values) Settings {
	s := Defaults()

	s.RenderRings = boolParam(q, "renderRings", s.RenderRings)
	s.RenderArcs = boolParam(q, "renderArcs", s.RenderArcs)
	s.RenderLabels = boolParam(q, "renderLabels", s.RenderLabels)
	s.Animate = boolParam(q, "animate", s.Animate)
	s.Rotate = boolParam(q, "rotate", s.Rotate)
	s.Debug = boolParam(q, "debug", s.Debug)

	s.TickSpeed = intParam(q, "tickSpeed", s.TickSpeed)
	s.NumAnimations = intParam(q, "numAnimation", s.NumAnimations)
	s.FlightTime = intParam(q, "flightTime", s.FlightTime)
	s.NumRings = intParam(q, "numRings", s.NumRings)

	s.ArcRelLength = floatParam(q, "arcRelLength", s.ArcRelLength)
	s.RingRadius = floatParam(q, "ringRadius", s.RingRadius)
	s.RingSpeed = floatParam(q, "ringSpeed", s.RingSpeed)
	s.ArcDashGap = floatParam(q, "arcDashGap", s.ArcDashGap)
	s.ArcAltitude = floatParam(q, "arcAltitude", s.ArcAltitude)
	s.AtmosphereAltitude = floatParam(q, "atmosphereAltitude", s.AtmosphereAltitude)

	if v := q.Get("env"); v != "" {
		s.Env = events.NormalizeEnvironment(v)
	}

	return s.Clamped()
}

// ParseQueryString decodes settings from a raw query string such as
// "tickSpeed=500&env=stg".
func ParseQueryString(raw string) (Settings, error) {
	q, err := url.ParseQuery(raw)
	if err != nil {
		return Defaults(), err
	}
	return FromQuery(q), nil
}

// Query encodes the settings back into query parameters.
func (s Settings) Query() url.Values {
	q := url.Values{}
	q.Set("renderRings", strconv.FormatBool(s.RenderRings))
	q.Set("renderArcs", strconv.FormatBool(s.RenderArcs))
	q.Set("renderLabels", strconv.FormatBool(s.RenderLabels))
	q.Set("animate", strconv.FormatBool(s.Animate))
	q.Set("rotate", strconv.FormatBool(s.Rotate))
	q.Set("debug", strconv.FormatBool(s.Debug))
	q.Set("tickSpeed", strconv.Itoa(s.TickSpeed))
	q.Set("numAnimation", strconv.Itoa(s.NumAnimations))
	q.Set("flightTime", strconv.Itoa(s.FlightTime))
	q.Set("numRings", strconv.Itoa(s.NumRings))
	q.Set("arcRelLength", formatFloat(s.ArcRelLength))
	q.Set("ringRadius", formatFloat(s.RingRadius))
	q.Set("ringSpeed", formatFloat(s.RingSpeed))
	q.Set("arcDashGap", formatFloat(s.ArcDashGap))
	q.Set("arcAltitude", formatFloat(s.ArcAltitude))
	q.Set("atmosphereAltitude", formatFloat(s.AtmosphereAltitude))
	q.Set("env", string(s.Env))
	return q
}

// Clamped bounds the animation timing parameters so a hostile query string
// cannot stall or flood the scheduler.
func (s Settings) Clamped() Settings {
	if s.TickSpeed < 250 {
		s.TickSpeed = 250
	} else if s.TickSpeed > 60000 {
		s.TickSpeed = 60000
	}

	if s.FlightTime < 250 {
		s.FlightTime = 250
	} else if s.FlightTime > 60000 {
		s.FlightTime = 60000
	}

	if s.ArcRelLength <= 0 {
		s.ArcRelLength = Defaults().ArcRelLength
	}

	if s.NumRings < 1 {
		s.NumRings = 1
	}

	return s
}

func boolParam(q url.Values, key string, fallback bool) bool {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	// use-query-params encodes booleans as 0/1; accept both styles.
	switch v {
	case "1", "true":
		return true
	case "0", "false":
		return false
	}
	return fallback
}

func intParam(q url.Values, key string, fallback int) int {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func floatParam(q url.Values, key string, fallback float64) float64 {
	v := q.Get(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
