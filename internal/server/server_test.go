package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bus-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	stats  models.AnalyticsStats
	alerts []models.AlertEvent
}

func (f *fakeSource) GetCurrentStats() models.AnalyticsStats { return f.stats }

func (f *fakeSource) GetRecentAlerts(limit int) []models.AlertEvent {
	if limit > len(f.alerts) {
		limit = len(f.alerts)
	}
	return f.alerts[len(f.alerts)-limit:]
}

type fakeArchive struct {
	alerts    []models.AlertEvent
	err       error
	sessionID string
	count     int64
}

func (f *fakeArchive) GetRecentAlerts(_ context.Context, sessionID string, count int64) ([]models.AlertEvent, error) {
	f.sessionID = sessionID
	f.count = count
	if f.err != nil {
		return nil, f.err
	}
	if int(count) < len(f.alerts) {
		return f.alerts[:count], nil
	}
	return f.alerts, nil
}

func newTestServer() *Server {
	return newArchiveServer(nil)
}

func newArchiveServer(archive AlertArchive) *Server {
	src := &fakeSource{
		stats: models.AnalyticsStats{SessionID: "s", Phase: "live", TotalSamples: 12, TotalAlerts: 2},
		alerts: []models.AlertEvent{
			{Reasons: []string{"Sudden voltage change"}, Recommendation: "Monitor only - no clear action yet"},
			{Reasons: []string{"Noise growth detected"}, Recommendation: "Recommend derating (reduce power)"},
		},
	}
	return New(src, archive, zap.NewNop())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "live", body["phase"])
}

func TestAnalyticsCurrent(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/current", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.AnalyticsStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(12), stats.TotalSamples)
	assert.Equal(t, int64(2), stats.TotalAlerts)
}

func TestRecentAlerts(t *testing.T) {
	srv := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/recent?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []models.AlertEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "Recommend derating (reduce power)", alerts[0].Recommendation)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/recent?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStoredAlerts(t *testing.T) {
	archive := &fakeArchive{alerts: []models.AlertEvent{
		{SessionID: "s", Reasons: []string{"Voltage below learned normal range"}},
		{SessionID: "s", Reasons: []string{"Sudden voltage change"}},
	}}
	srv := newArchiveServer(archive)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/stored?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []models.AlertEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, []string{"Voltage below learned normal range"}, alerts[0].Reasons)
	assert.Equal(t, "s", archive.sessionID)
	assert.Equal(t, int64(1), archive.count)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/stored", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(10), archive.count)
}

func TestStoredAlerts_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		archive AlertArchive
		path    string
		want    int
	}{
		{"no store", nil, "/alerts/stored", http.StatusServiceUnavailable},
		{"store error", &fakeArchive{err: errors.New("connection refused")}, "/alerts/stored", http.StatusBadGateway},
		{"bad limit", &fakeArchive{}, "/alerts/stored?limit=-2", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newArchiveServer(tt.archive).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestStoredAlerts_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	newArchiveServer(&fakeArchive{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alerts/stored", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
