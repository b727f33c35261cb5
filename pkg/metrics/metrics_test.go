package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveParse(t *testing.T) {
	parsed := testutil.ToFloat64(ParsedTotal.WithLabelValues("csv"))
	dropped := testutil.ToFloat64(DroppedTotal)

	ObserveParse("csv", 2)
	ObserveParse("csv", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(ParsedTotal.WithLabelValues("csv"))-parsed)
	assert.Equal(t, 2.0, testutil.ToFloat64(DroppedTotal)-dropped)
}

func TestObserveRecord(t *testing.T) {
	before := testutil.ToFloat64(RecordsTotal.WithLabelValues("Tunneling"))
	ObserveRecord("Tunneling", 97)
	assert.Equal(t, 1.0, testutil.ToFloat64(RecordsTotal.WithLabelValues("Tunneling"))-before)
}

func TestObserveLookup(t *testing.T) {
	ok := testutil.ToFloat64(EnrichmentTotal.WithLabelValues("ok"))
	failed := testutil.ToFloat64(EnrichmentTotal.WithLabelValues("error"))

	ObserveLookup(nil)
	ObserveLookup(errors.New("not found"))
	ObserveLookup(errors.New("timeout"))

	assert.Equal(t, 1.0, testutil.ToFloat64(EnrichmentTotal.WithLabelValues("ok"))-ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(EnrichmentTotal.WithLabelValues("error"))-failed)
}

func TestHandler(t *testing.T) {
	ObserveRecord("Normal", 8)

	server := httptest.NewServer(Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `dnssentry_records_total{label="Normal"}`)
	assert.Contains(t, string(body), "dnssentry_threat_score_bucket")
}
