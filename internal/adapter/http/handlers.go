package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/couchcryptid/polygon-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize caps request bodies; every payload here is tiny.
const maxRequestBodySize = 64 << 10

// Dashboard is the state container the API drives. *dashboard.Dashboard
// implements it.
type Dashboard interface {
	CheckReadiness(ctx context.Context) error

	Sources() []domain.DataSource
	View() dashboard.View

	StartDrawing()
	AddPoint(p domain.Point) bool
	FinishDrawing() dashboard.FinishResult
	ConfirmSource(sourceID string) (domain.PolygonRecord, bool, error)
	CancelDrawing()

	Polygons() []domain.PolygonRecord
	Polygon(id string) (domain.PolygonRecord, bool)
	DeletePolygon(id string) bool
	SetField(id, field string) error
	AddRule(id string, rule domain.ThresholdRule) ([]domain.ThresholdRule, error)
	UpdateRule(id string, index int, rule domain.ThresholdRule) ([]domain.ThresholdRule, error)
	DeleteRule(id string, index int) ([]domain.ThresholdRule, error)

	Timeline() domain.TimelineView
	CurrentValue() float64
	SelectIndex(i int) domain.TimelineView
	ApplyPreset(p domain.Preset) (domain.TimelineView, error)
	ZoomIn() domain.TimelineView
	ZoomOut() domain.TimelineView
	Average(start, end int) float64

	RefreshAsync()
}

// --- Request/Response Models ---

type pointRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lon *float64 `json:"lon" validate:"required"`
}

type confirmRequest struct {
	DataSourceID string `json:"data_source_id" validate:"required"`
}

type fieldRequest struct {
	Field string `json:"field" validate:"required"`
}

type ruleRequest struct {
	Operator domain.Operator `json:"operator" validate:"required"`
	Value    *float64        `json:"value" validate:"required"`
	Color    string          `json:"color" validate:"required,max=64"`
}

func (r ruleRequest) rule() domain.ThresholdRule {
	return domain.ThresholdRule{Operator: r.Operator, Value: *r.Value, Color: r.Color}
}

type selectRequest struct {
	Index *int `json:"index" validate:"required"`
}

type presetRequest struct {
	Name string `json:"name" validate:"required"`
}

type zoomRequest struct {
	Direction string `json:"direction" validate:"required,oneof=in out"`
}

type drawingResponse struct {
	Accepted bool                   `json:"accepted"`
	Drawing  dashboard.DrawingView  `json:"drawing"`
	Polygon  *dashboard.PolygonView `json:"polygon,omitempty"`
}

type timelineResponse struct {
	Timeline     domain.TimelineView `json:"timeline"`
	CurrentValue *float64            `json:"current_value"`
}

type rulesResponse struct {
	Rules []domain.ThresholdRule `json:"rules"`
}

type averageResponse struct {
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Average *float64 `json:"average"`
}

// --- Routes ---

func (s *Server) registerRoutes(r chi.Router) {
	r.Get("/sources", s.listSources)
	r.Get("/view", s.getView)

	r.Route("/drawing", func(r chi.Router) {
		r.Post("/start", s.startDrawing)
		r.Post("/points", s.addPoint)
		r.Post("/finish", s.finishDrawing)
		r.Post("/confirm", s.confirmSource)
		r.Post("/cancel", s.cancelDrawing)
	})

	r.Route("/polygons", func(r chi.Router) {
		r.Get("/", s.listPolygons)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getPolygon)
			r.Delete("/", s.deletePolygon)
			r.Put("/field", s.setField)
			r.Post("/rules", s.addRule)
			r.Put("/rules/{index}", s.updateRule)
			r.Delete("/rules/{index}", s.deleteRule)
		})
	})

	r.Route("/timeline", func(r chi.Router) {
		r.Get("/", s.getTimeline)
		r.Post("/select", s.selectIndex)
		r.Post("/preset", s.applyPreset)
		r.Post("/zoom", s.zoom)
		r.Get("/average", s.average)
	})

	r.Post("/feed/refresh", s.refreshFeed)

	if s.stream != nil {
		r.Get("/stream", s.stream.ServeHTTP)
	}
}

// --- Handlers ---

func (s *Server) listSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]domain.DataSource{"sources": s.dashboard.Sources()})
}

func (s *Server) getView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dashboard.View())
}

func (s *Server) startDrawing(w http.ResponseWriter, _ *http.Request) {
	s.dashboard.StartDrawing()
	s.writeDrawing(w, true, nil)
}

func (s *Server) addPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok := s.dashboard.AddPoint(domain.Point{Lat: *req.Lat, Lon: *req.Lon})
	s.writeDrawing(w, ok, nil)
}

func (s *Server) finishDrawing(w http.ResponseWriter, _ *http.Request) {
	res := s.dashboard.FinishDrawing()
	s.writeDrawing(w, res.Accepted, res.Polygon)
}

func (s *Server) confirmSource(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, ok, err := s.dashboard.ConfirmSource(req.DataSourceID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !ok {
		s.writeDrawing(w, false, nil)
		return
	}
	s.logger.Debug("data source confirmed", "polygon_id", rec.ID, "data_source", rec.DataSourceID)
	writeJSON(w, http.StatusCreated, drawingResponse{
		Accepted: true,
		Drawing:  s.dashboard.View().Drawing,
		Polygon:  polygonView(&rec),
	})
}

func (s *Server) cancelDrawing(w http.ResponseWriter, _ *http.Request) {
	s.dashboard.CancelDrawing()
	s.writeDrawing(w, true, nil)
}

func (s *Server) listPolygons(w http.ResponseWriter, _ *http.Request) {
	recs := s.dashboard.Polygons()
	out := make([]dashboard.PolygonView, len(recs))
	for i, r := range recs {
		out[i] = dashboard.NewPolygonView(r)
	}
	writeJSON(w, http.StatusOK, map[string][]dashboard.PolygonView{"polygons": out})
}

func (s *Server) getPolygon(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.dashboard.Polygon(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrPolygonNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewPolygonView(rec))
}

// deletePolygon is idempotent: unknown ids also get 204.
func (s *Server) deletePolygon(w http.ResponseWriter, r *http.Request) {
	s.dashboard.DeletePolygon(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setField(w http.ResponseWriter, r *http.Request) {
	var req fieldRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.dashboard.SetField(id, req.Field); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.getPolygon(w, r)
}

// addRule appends the posted rule, or the editor default when the body is empty.
func (s *Server) addRule(w http.ResponseWriter, r *http.Request) {
	rule := domain.NewRule()
	var req ruleRequest
	empty, ok := s.decodeOptional(w, r, &req)
	if !ok {
		return
	}
	if !empty {
		rule = req.rule()
	}
	rules, err := s.dashboard.AddRule(chi.URLParam(r, "id"), rule)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rulesResponse{Rules: rules})
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	index, ok := ruleIndex(w, r)
	if !ok {
		return
	}
	var req ruleRequest
	if !s.decode(w, r, &req) {
		return
	}
	rules, err := s.dashboard.UpdateRule(chi.URLParam(r, "id"), index, req.rule())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Rules: rules})
}

func (s *Server) deleteRule(w http.ResponseWriter, r *http.Request) {
	index, ok := ruleIndex(w, r)
	if !ok {
		return
	}
	rules, err := s.dashboard.DeleteRule(chi.URLParam(r, "id"), index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rulesResponse{Rules: rules})
}

func (s *Server) getTimeline(w http.ResponseWriter, _ *http.Request) {
	s.writeTimeline(w, s.dashboard.Timeline())
}

func (s *Server) selectIndex(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeTimeline(w, s.dashboard.SelectIndex(*req.Index))
}

func (s *Server) applyPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.dashboard.ApplyPreset(domain.Preset(req.Name))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeTimeline(w, view)
}

func (s *Server) zoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if !s.decode(w, r, &req) {
		return
	}
	var view domain.TimelineView
	if req.Direction == "in" {
		view = s.dashboard.ZoomIn()
	} else {
		view = s.dashboard.ZoomOut()
	}
	s.writeTimeline(w, view)
}

func (s *Server) average(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := strconv.Atoi(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be an integer index")
		return
	}
	end, err := strconv.Atoi(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be an integer index")
		return
	}
	writeJSON(w, http.StatusOK, averageResponse{
		Start:   start,
		End:     end,
		Average: domain.FiniteOrNil(s.dashboard.Average(start, end)),
	})
}

func (s *Server) refreshFeed(w http.ResponseWriter, _ *http.Request) {
	s.dashboard.RefreshAsync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// --- Helpers ---

func (s *Server) writeDrawing(w http.ResponseWriter, accepted bool, rec *domain.PolygonRecord) {
	status := http.StatusOK
	if rec != nil {
		status = http.StatusCreated
	}
	writeJSON(w, status, drawingResponse{
		Accepted: accepted,
		Drawing:  s.dashboard.View().Drawing,
		Polygon:  polygonView(rec),
	})
}

func (s *Server) writeTimeline(w http.ResponseWriter, view domain.TimelineView) {
	writeJSON(w, http.StatusOK, timelineResponse{
		Timeline:     view,
		CurrentValue: domain.FiniteOrNil(s.dashboard.CurrentValue()),
	})
}

func polygonView(rec *domain.PolygonRecord) *dashboard.PolygonView {
	if rec == nil {
		return nil
	}
	v := dashboard.NewPolygonView(*rec)
	return &v
}

// decode reads a single JSON object into dst and validates it, writing a 400
// on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	empty, ok := s.decodeOptional(w, r, dst)
	if ok && empty {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}
	return ok
}

// decodeOptional is decode but accepts an empty body, reported as empty.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) (empty, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return true, true
		}
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false, false
	}
	if dec.More() {
		writeError(w, http.StatusBadRequest, "request body must contain a single JSON object")
		return false, false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false, false
	}
	return false, true
}

func ruleIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rule index must be an integer")
		return 0, false
	}
	return index, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrPolygonNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRuleIndexOutOfRange),
		errors.Is(err, domain.ErrUnknownDataSource),
		errors.Is(err, domain.ErrUnknownPreset),
		errors.Is(err, domain.ErrEmptyField),
		errors.Is(err, domain.ErrInvalidOperator):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
