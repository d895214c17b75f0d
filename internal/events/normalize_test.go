package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBareArray(t *testing.T) {
	raw := []byte(`[{"city":"Montreal","country":"CA","lat":"45.5","lng":"-73.6","region":"ca-central-1","timestamp":1700000000000,"type":"click","event_id":"a1"}]`)

	evs, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Montreal", evs[0].City)
	assert.Equal(t, RegionCACentral1, evs[0].Region)
	assert.Equal(t, int64(1700000000000), evs[0].Timestamp)
}

func TestNormalizeItemsWrapper(t *testing.T) {
	raw := []byte(`{"type":"real-time","items":[{"city":"Dublin","lat":"53.3","lng":"-6.2","region":"eu-west-1","timestamp":42,"event_id":"b2","type":"view"}]}`)

	evs, err := Normalize(raw)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Dublin", evs[0].City)
}

func TestNormalizeEmptyItemsWrapper(t *testing.T) {
	evs, err := Normalize([]byte(`{"items":[]}`))
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestNormalizeMessageIsUpstreamError(t *testing.T) {
	_, err := Normalize([]byte(`{"message":"Forbidden"}`))
	require.Error(t, err)

	var upstream *UpstreamError
	require.True(t, errors.As(err, &upstream))
	assert.Equal(t, "Forbidden", upstream.Message)
}

func TestNormalizeMalformed(t *testing.T) {
	for _, raw := range []string{``, `42`, `"nope"`, `{"unrelated":true}`, `[{]`} {
		_, err := Normalize([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedResponse, "payload %q", raw)
	}
}

func TestLiveEventCoordinates(t *testing.T) {
	ev := LiveEvent{Lat: "45.502079", Lng: "-73.562011"}
	c, err := ev.Coordinates()
	require.NoError(t, err)
	assert.InDelta(t, 45.502079, c.Lat, 1e-9)
	assert.InDelta(t, -73.562011, c.Lng, 1e-9)

	_, err = LiveEvent{Lat: "", Lng: "0"}.Coordinates()
	assert.Error(t, err)
}

func TestRegionGeoNeverMissesForKnownRegions(t *testing.T) {
	for _, r := range []Region{RegionUSEast1, RegionUSEast2, RegionEUWest1, RegionAPSoutheast2, RegionCACentral1} {
		c, ok := r.Geo()
		require.True(t, ok, "region %s", r)
		assert.NotZero(t, c.Lat)
	}

	_, ok := Region("mars-north-1").Geo()
	assert.False(t, ok)
}

func TestNormalizeEnvironment(t *testing.T) {
	assert.Equal(t, EnvDev, NormalizeEnvironment("dev"))
	assert.Equal(t, EnvStg, NormalizeEnvironment("stg"))
	assert.Equal(t, EnvPrd, NormalizeEnvironment("prd"))
	assert.Equal(t, EnvPrd, NormalizeEnvironment("production"))
	assert.Equal(t, EnvPrd, NormalizeEnvironment(""))
}

func TestNumberAcceptsStringsAndBare(t *testing.T) {
	evs, err := Normalize([]byte(`[{"lat":"1","lng":"2","price":"19.99","timestamp":1},{"lat":"1","lng":"2","price":5,"timestamp":2}]`))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.InDelta(t, 19.99, float64(evs[0].Price), 1e-9)
	assert.InDelta(t, 5.0, float64(evs[1].Price), 1e-9)
}
