package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/polygon-dashboard/internal/adapter/http"
	"github.com/couchcryptid/polygon-dashboard/internal/adapter/stream"
	"github.com/couchcryptid/polygon-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-dashboard/internal/observability"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	feed domain.Feed
}

func (s stubFetcher) FetchFeed(_ context.Context, _ domain.FeedRequest) (domain.Feed, error) {
	return s.feed, nil
}

func hourlyFeed(values ...float64) domain.Feed {
	base := time.Date(2024, 4, 11, 0, 0, 0, 0, time.UTC)
	ts := make([]time.Time, len(values))
	for i := range values {
		ts[i] = base.Add(time.Duration(i) * time.Hour)
	}
	return domain.Feed{Field: domain.DefaultField, Timestamps: ts, Values: values}
}

func newTestServer(t *testing.T, sourceIDs ...string) (*httpadapter.Server, *dashboard.Dashboard) {
	t.Helper()
	if len(sourceIDs) == 0 {
		sourceIDs = []string{"open-meteo"}
	}
	sources := make([]dashboard.Source, len(sourceIDs))
	for i, id := range sourceIDs {
		sources[i] = dashboard.Source{
			DataSource: domain.DataSource{ID: id, Name: id},
			Fetcher:    stubFetcher{feed: hourlyFeed(5, 15, 30)},
		}
	}

	n := 0
	store := domain.NewPolygonStore(domain.WithIDFunc(func() string {
		n++
		return fmt.Sprintf("poly-%d", n)
	}))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := dashboard.New(sources, logger, observability.NewMetricsForTesting(), dashboard.WithStore(store))
	require.NoError(t, err)

	return httpadapter.NewServer(":0", d, logger), d
}

func do(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type drawingBody struct {
	Accepted bool `json:"accepted"`
	Drawing  struct {
		State     string         `json:"state"`
		Points    []domain.Point `json:"points"`
		CanFinish bool           `json:"can_finish"`
	} `json:"drawing"`
	Polygon *dashboard.PolygonView `json:"polygon"`
}

func drawTriangle(t *testing.T, srv http.Handler) {
	t.Helper()
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/v1/drawing/start", nil).Code)
	for _, p := range []domain.Point{{Lat: 12.97, Lon: 77.59}, {Lat: 12.98, Lon: 77.59}, {Lat: 12.97, Lon: 77.60}} {
		rec := do(t, srv, http.MethodPost, "/api/v1/drawing/points", p)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, decode[drawingBody](t, rec).Accepted)
	}
}

// --- operational ---

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzTracksFeedLoad(t *testing.T) {
	srv, d := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, d.Refresh(context.Background()))

	rec = do(t, srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- sources and drawing ---

func TestListSources(t *testing.T) {
	srv, _ := newTestServer(t, "open-meteo", "mock-source")
	rec := do(t, srv, http.MethodGet, "/api/v1/sources", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string][]domain.DataSource](t, rec)
	require.Len(t, body["sources"], 2)
	assert.Equal(t, "mock-source", body["sources"][1].ID)
}

func TestDrawing_SingleSourceFinishCreates(t *testing.T) {
	srv, _ := newTestServer(t)
	drawTriangle(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decode[drawingBody](t, rec)
	assert.True(t, body.Accepted)
	assert.Equal(t, "idle", body.Drawing.State)
	require.NotNil(t, body.Polygon)
	assert.Equal(t, "poly-1", body.Polygon.ID)
	assert.Nil(t, body.Polygon.Value)
	assert.Equal(t, domain.FallbackColor, body.Polygon.Color)
}

func TestDrawing_RejectionsAreNotErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/drawing/points", domain.Point{Lat: 1, Lon: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[drawingBody](t, rec).Accepted, "not drawing yet")

	do(t, srv, http.MethodPost, "/api/v1/drawing/start", nil)
	rec = do(t, srv, http.MethodPost, "/api/v1/drawing/points", domain.Point{Lat: 95, Lon: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[drawingBody](t, rec).Accepted, "latitude out of range")

	rec = do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[drawingBody](t, rec)
	assert.False(t, body.Accepted)
	assert.Equal(t, "drawing", body.Drawing.State)
}

func TestDrawing_PointValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodPost, "/api/v1/drawing/start", nil)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/drawing/points", `{"lat": 1}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/drawing/points", `{"lat": 1, "lon": 2, "alt": 3}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/drawing/points", `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/drawing/points", nil).Code)
}

func TestDrawing_MultiSourceConfirm(t *testing.T) {
	srv, _ := newTestServer(t, "open-meteo", "mock-source")
	drawTriangle(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[drawingBody](t, rec)
	assert.True(t, body.Accepted)
	assert.Equal(t, "awaiting_source", body.Drawing.State)
	assert.Nil(t, body.Polygon)

	rec = do(t, srv, http.MethodPost, "/api/v1/drawing/confirm", map[string]string{"data_source_id": "weather-kit"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/drawing/confirm", map[string]string{"data_source_id": "mock-source"})
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode[drawingBody](t, rec)
	require.NotNil(t, body.Polygon)
	assert.Equal(t, "mock-source", body.Polygon.DataSourceID)

	rec = do(t, srv, http.MethodPost, "/api/v1/drawing/confirm", map[string]string{"data_source_id": "mock-source"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[drawingBody](t, rec).Accepted)
}

func TestDrawing_Cancel(t *testing.T) {
	srv, _ := newTestServer(t)
	drawTriangle(t, srv)

	rec := do(t, srv, http.MethodPost, "/api/v1/drawing/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[drawingBody](t, rec)
	assert.Equal(t, "idle", body.Drawing.State)
	assert.Empty(t, body.Drawing.Points)
}

// --- polygons and rules ---

func TestPolygons_GetDeleteField(t *testing.T) {
	srv, _ := newTestServer(t)
	drawTriangle(t, srv)
	do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/polygons", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string][]dashboard.PolygonView](t, rec)
	require.Len(t, list["polygons"], 1)

	rec = do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/field", map[string]string{"field": "relative_humidity_2m"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "relative_humidity_2m", decode[dashboard.PolygonView](t, rec).Field)

	rec = do(t, srv, http.MethodPut, "/api/v1/polygons/poly-404/field", map[string]string{"field": "rain"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/polygons/poly-1", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/v1/polygons/poly-1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/api/v1/polygons/poly-1", nil).Code)
}

func TestRules_CRUD(t *testing.T) {
	srv, d := newTestServer(t)
	drawTriangle(t, srv)
	do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)
	d.OnTimelineValueChange(30)

	rec := do(t, srv, http.MethodPost, "/api/v1/polygons/poly-1/rules", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rules := decode[map[string][]domain.ThresholdRule](t, rec)["rules"]
	require.Len(t, rules, 4)
	assert.Equal(t, domain.NewRule(), rules[3])

	rec = do(t, srv, http.MethodPost, "/api/v1/polygons/poly-1/rules", `{"operator": ">", "value": 100, "color": "#000000"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, decode[map[string][]domain.ThresholdRule](t, rec)["rules"], 5)

	rec = do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/rules/0", `{"operator": "=", "value": 30, "color": "#123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/polygons/poly-1", nil)
	assert.Equal(t, "#123456", decode[dashboard.PolygonView](t, rec).Color)

	rec = do(t, srv, http.MethodDelete, "/api/v1/polygons/poly-1/rules/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]domain.ThresholdRule](t, rec)["rules"], 4)
}

func TestRules_Errors(t *testing.T) {
	srv, _ := newTestServer(t)
	drawTriangle(t, srv)
	do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)

	valid := `{"operator": "<", "value": 0, "color": "#ff0000"}`
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/rules/9", valid).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/rules/x", valid).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/v1/polygons/poly-404/rules/0", valid).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodDelete, "/api/v1/polygons/poly-404/rules/0", nil).Code)

	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/rules/0", `{"operator": "!=", "value": 0, "color": "#ff0000"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPut, "/api/v1/polygons/poly-1/rules/0", `{"operator": "<", "color": "#ff0000"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPost, "/api/v1/polygons/poly-1/rules", `{"operator": "<", "value": 1}`).Code)
}

// --- timeline ---

type timelineBody struct {
	Timeline     domain.TimelineView `json:"timeline"`
	CurrentValue *float64            `json:"current_value"`
}

func TestTimeline_SelectPresetZoom(t *testing.T) {
	srv, d := newTestServer(t)
	require.NoError(t, d.Refresh(context.Background()))

	rec := do(t, srv, http.MethodGet, "/api/v1/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[timelineBody](t, rec)
	assert.Equal(t, 3, body.Timeline.Total)
	require.NotNil(t, body.CurrentValue)
	assert.Equal(t, 30.0, *body.CurrentValue)

	rec = do(t, srv, http.MethodPost, "/api/v1/timeline/select", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[timelineBody](t, rec)
	assert.Equal(t, 0, body.Timeline.Selected)
	assert.Equal(t, 5.0, *body.CurrentValue)

	rec = do(t, srv, http.MethodPost, "/api/v1/timeline/preset", map[string]string{"name": "last-24h"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPost, "/api/v1/timeline/preset", map[string]string{"name": "last-year"}).Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/timeline/zoom", map[string]string{"direction": "in"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[timelineBody](t, rec).Timeline.Zoom)

	rec = do(t, srv, http.MethodPost, "/api/v1/timeline/zoom", map[string]string{"direction": "out"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[timelineBody](t, rec).Timeline.Zoom)

	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPost, "/api/v1/timeline/zoom", map[string]string{"direction": "sideways"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, srv, http.MethodPost, "/api/v1/timeline/select", `{}`).Code)
}

func TestTimeline_EmptyCurrentValueIsNull(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"current_value":null`)
}

func TestTimeline_Average(t *testing.T) {
	srv, d := newTestServer(t)
	require.NoError(t, d.Refresh(context.Background()))

	rec := do(t, srv, http.MethodGet, "/api/v1/timeline/average?start=0&end=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.InDelta(t, 10.0, body["average"], 1e-9)

	rec = do(t, srv, http.MethodGet, "/api/v1/timeline/average?start=2&end=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"average":null`)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/timeline/average?start=a&end=1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/v1/timeline/average?start=0", nil).Code)
}

// --- view and feed ---

func TestView_AfterRefresh(t *testing.T) {
	srv, _ := newTestServer(t)
	drawTriangle(t, srv)
	do(t, srv, http.MethodPost, "/api/v1/drawing/finish", nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/feed/refresh", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	assert.Eventually(t, func() bool {
		return do(t, srv, http.MethodGet, "/readyz", nil).Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	rec = do(t, srv, http.MethodGet, "/api/v1/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[dashboard.View](t, rec)
	require.Len(t, view.Polygons, 1)
	assert.Equal(t, "green", view.Polygons[0].Color)
	require.NotNil(t, view.CurrentValue)
	assert.Equal(t, 30.0, *view.CurrentValue)
	require.NotNil(t, view.Feed)
	assert.Equal(t, "open-meteo", view.Feed.DataSourceID)
	assert.Equal(t, 3, view.Feed.Points)
}

func TestStream_NotMountedByDefault(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/stream", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStream_PushesColorsAfterRefresh(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	hub := stream.NewHub(logger, metrics)
	d, err := dashboard.New(
		[]dashboard.Source{{
			DataSource: domain.DataSource{ID: "open-meteo", Name: "Open-Meteo"},
			Fetcher:    stubFetcher{feed: hourlyFeed(5, 15, 30)},
		}},
		logger, metrics, dashboard.WithPublisher(hub),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(httpadapter.NewServer(":0", d, logger, httpadapter.WithStream(hub)))
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})

	d.StartDrawing()
	for _, p := range []domain.Point{{Lat: 12.97, Lon: 77.59}, {Lat: 12.98, Lon: 77.60}, {Lat: 12.96, Lon: 77.61}} {
		d.AddPoint(p)
	}
	require.True(t, d.FinishDrawing().Accepted)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/stream", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Refresh(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg stream.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Snapshots, 1)
	require.NotNil(t, msg.Snapshots[0].Value)
	assert.Equal(t, 30.0, *msg.Snapshots[0].Value)
	assert.Equal(t, "green", msg.Snapshots[0].Color)
}
