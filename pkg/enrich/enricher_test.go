package enrich

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velemoonkon/dnssentry/pkg/config"
	"github.com/velemoonkon/dnssentry/pkg/record"
	"github.com/velemoonkon/dnssentry/pkg/tunnel"
)

// fakeLocator resolves from a fixed table and counts lookups per address
type fakeLocator struct {
	mu     sync.Mutex
	places map[string]Location
	calls  map[string]int
}

func newFakeLocator(places map[string]Location) *fakeLocator {
	return &fakeLocator{places: places, calls: make(map[string]int)}
}

func (f *fakeLocator) Locate(ctx context.Context, ip string) (Location, error) {
	f.mu.Lock()
	f.calls[ip]++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	loc, ok := f.places[ip]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

func newRecord(ip string) *record.Record {
	return &record.Record{
		Query:        "google.com",
		SourceIP:     ip,
		Type:         "A",
		ResponseCode: "NOERROR",
		Entropy:      2.646,
		Length:       10,
	}
}

var testPlaces = map[string]Location{
	"1.1.1.1": {Name: "Moscow, Russia", Lat: 55.75, Lng: 37.62},
	"2.2.2.2": {Name: "Berlin, Germany", Lat: 52.52, Lng: 13.40},
}

func TestEnrich(t *testing.T) {
	locator := newFakeLocator(testPlaces)
	e := NewEnricher(locator, nil)

	moscow := newRecord("1.1.1.1")
	moscowAgain := newRecord("1.1.1.1")
	berlin := newRecord("2.2.2.2")
	unknown := newRecord("3.3.3.3")

	require.NoError(t, e.Enrich(t.Context(), []*record.Record{moscow, moscowAgain, berlin, unknown}))

	assert.Equal(t, "Moscow, Russia", moscow.Location)
	require.NotNil(t, moscow.Lat)
	assert.Equal(t, 55.75, *moscow.Lat)
	assert.Equal(t, 15, moscow.ThreatScore)
	assert.Equal(t, []string{"high_risk_location"}, moscow.Indicators)
	assert.Equal(t, "Moscow, Russia", moscowAgain.Location)

	assert.Equal(t, "Berlin, Germany", berlin.Location)
	assert.Equal(t, 0, berlin.ThreatScore)
	assert.Empty(t, berlin.Indicators)

	// Failed lookups clear the placeholder
	assert.Empty(t, unknown.Location)
	assert.Nil(t, unknown.Lat)
	assert.Nil(t, unknown.Lng)
	assert.Equal(t, 5, unknown.ThreatScore)
	assert.Equal(t, []string{"unresolved_location"}, unknown.Indicators)

	// One lookup per address
	assert.Equal(t, map[string]int{"1.1.1.1": 1, "2.2.2.2": 1, "3.3.3.3": 1}, locator.calls)
}

func TestEnrich_SkipsResolved(t *testing.T) {
	locator := newFakeLocator(testPlaces)
	e := NewEnricher(locator, nil)

	r := newRecord("1.1.1.1")
	r.Location = "Paris, France"

	require.NoError(t, e.Enrich(t.Context(), []*record.Record{r}))
	assert.Equal(t, "Paris, France", r.Location)
	assert.Empty(t, locator.calls)
}

func TestEnrich_RetriesResolvingPlaceholder(t *testing.T) {
	locator := newFakeLocator(testPlaces)
	e := NewEnricher(locator, nil)

	r := newRecord("2.2.2.2")
	r.Location = record.LocationResolving

	require.NoError(t, e.Enrich(t.Context(), []*record.Record{r}))
	assert.Equal(t, "Berlin, Germany", r.Location)
}

func TestEnrich_Empty(t *testing.T) {
	e := NewEnricher(newFakeLocator(nil), nil)
	assert.NoError(t, e.Enrich(t.Context(), nil))
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	e := NewEnricher(newFakeLocator(testPlaces), nil)
	r := newRecord("1.1.1.1")

	err := e.Enrich(ctx, []*record.Record{r})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotEqual(t, record.LocationResolving, r.Location)
}

func TestEnrich_CustomScorer(t *testing.T) {
	e := NewEnricher(newFakeLocator(testPlaces), tunnel.NewScorer([]string{"Germany"}))

	r := newRecord("2.2.2.2")
	require.NoError(t, e.Enrich(t.Context(), []*record.Record{r}))
	assert.Equal(t, 15, r.ThreatScore)
}

func TestEnrichRecord(t *testing.T) {
	locator := newFakeLocator(testPlaces)
	e := NewEnricher(locator, nil)

	r := newRecord("1.1.1.1")
	require.NoError(t, e.EnrichRecord(t.Context(), r))
	assert.Equal(t, "Moscow, Russia", r.Location)

	// Already located
	require.NoError(t, e.EnrichRecord(t.Context(), r))
	assert.Equal(t, 1, locator.calls["1.1.1.1"])

	missing := newRecord("9.9.9.9")
	err := e.EnrichRecord(t.Context(), missing)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, missing.Location)
}

// slowLocator blocks until its context ends
type slowLocator struct{}

func (slowLocator) Locate(ctx context.Context, _ string) (Location, error) {
	<-ctx.Done()
	return Location{}, ctx.Err()
}

func TestEnrichRecord_LookupTimeout(t *testing.T) {
	t.Cleanup(config.Init)
	t.Setenv("DNSSENTRY_ENRICH_LOOKUP_TIMEOUT", "10ms")
	config.Init()

	e := NewEnricher(slowLocator{}, nil)
	r := newRecord("1.1.1.1")

	start := time.Now()
	err := e.EnrichRecord(t.Context(), r)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, r.Location)
}

func TestPlaceName(t *testing.T) {
	tests := []struct {
		city, country, want string
	}{
		{"Moscow", "Russia", "Moscow, Russia"},
		{"", "Iran", "Iran"},
		{"Singapore", "", "Singapore"},
		{" ", " ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, placeName(tt.city, tt.country))
	}
}

func TestOpenGeoIP_Missing(t *testing.T) {
	_, err := OpenGeoIP(filepath.Join(t.TempDir(), "GeoLite2-City.mmdb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open GeoIP database")
}
