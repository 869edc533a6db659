package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/metrics"
	"github.com/platinummonkey/beacon/pkg/observability"
)

// QueryServer serves the dashboard's read API on top of the metrics
// service.
type QueryServer struct {
	service *metrics.Service
	router  *mux.Router
	logger  *observability.Logger
}

// NewQueryServer creates the query API.
func NewQueryServer(service *metrics.Service, logger *observability.Logger) *QueryServer {
	s := &QueryServer{
		service: service,
		router:  mux.NewRouter(),
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the query routes
func (s *QueryServer) setupRoutes() {
	s.router.HandleFunc("/api/projects/{projectKey}/metrics/summary", s.getSummary).Methods("GET")
	s.router.HandleFunc("/api/projects/{projectKey}/metrics/timeseries", s.getTimeSeries).Methods("GET")
	s.router.HandleFunc("/api/projects/{projectKey}/pages", s.getPages).Methods("GET")
	s.router.HandleFunc("/api/projects/{projectKey}/pages/slow", s.getSlowPages).Methods("GET")
	s.router.HandleFunc("/api/projects/{projectKey}/breakdown/{dimension}", s.getBreakdown).Methods("GET")
	s.router.HandleFunc("/api/pages/{pageId}/metrics", s.getPageMetrics).Methods("GET")
	s.router.HandleFunc("/api/sessions/{sessionId}/journey", s.getSessionJourney).Methods("GET")
	s.router.HandleFunc("/api/sessions/{sessionId}/errors", s.getSessionErrors).Methods("GET")
}

// Router exposes the route tree so binaries can mount middleware
// around it.
func (s *QueryServer) Router() *mux.Router {
	return s.router
}

func (s *QueryServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *QueryServer) getSummary(w http.ResponseWriter, r *http.Request) {
	projectKey, ok := httputil.ParsePathStringOrError(w, r, "projectKey")
	if !ok {
		return
	}
	timeRange := httputil.ParseQueryString(r, "range", "24h")

	summary, err := s.service.GetSummary(r.Context(), projectKey, timeRange)
	if err != nil {
		s.writeQueryError(w, r, err, "summary query failed")
		return
	}
	httputil.WriteSuccess(w, summary)
}

func (s *QueryServer) getTimeSeries(w http.ResponseWriter, r *http.Request) {
	projectKey, ok := httputil.ParsePathStringOrError(w, r, "projectKey")
	if !ok {
		return
	}
	timeRange := httputil.ParseQueryString(r, "range", "24h")
	interval := httputil.ParseQueryString(r, "interval", "1h")

	points, err := s.service.GetTimeSeries(r.Context(), projectKey, timeRange, interval)
	if err != nil {
		s.writeQueryError(w, r, err, "timeseries query failed")
		return
	}
	httputil.WriteSuccess(w, points)
}

func (s *QueryServer) getPages(w http.ResponseWriter, r *http.Request) {
	projectKey, ok := httputil.ParsePathStringOrError(w, r, "projectKey")
	if !ok {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	pages, err := s.service.GetProjectPages(r.Context(), projectKey, limit)
	if err != nil {
		s.writeQueryError(w, r, err, "pages query failed")
		return
	}
	httputil.WriteSuccess(w, pages)
}

func (s *QueryServer) getSlowPages(w http.ResponseWriter, r *http.Request) {
	projectKey, ok := httputil.ParsePathStringOrError(w, r, "projectKey")
	if !ok {
		return
	}
	metric := httputil.ParseQueryString(r, "metric", "lcp")
	limit, err := httputil.ParseQueryInt(r, "limit", 10)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	pages, err := s.service.GetSlowPages(r.Context(), projectKey, metric, limit)
	if err != nil {
		s.writeQueryError(w, r, err, "slow pages query failed")
		return
	}
	httputil.WriteSuccess(w, pages)
}

func (s *QueryServer) getBreakdown(w http.ResponseWriter, r *http.Request) {
	projectKey, ok := httputil.ParsePathStringOrError(w, r, "projectKey")
	if !ok {
		return
	}
	dimension, ok := httputil.ParsePathStringOrError(w, r, "dimension")
	if !ok {
		return
	}
	timeRange := httputil.ParseQueryString(r, "range", "24h")

	rows, err := s.service.GetBreakdown(r.Context(), projectKey, dimension, timeRange)
	if err != nil {
		s.writeQueryError(w, r, err, "breakdown query failed")
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (s *QueryServer) getPageMetrics(w http.ResponseWriter, r *http.Request) {
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "pageId")
	if !ok {
		return
	}
	timeRange := httputil.ParseQueryString(r, "range", "24h")

	samples, err := s.service.GetPageMetrics(r.Context(), pageID, timeRange)
	if err != nil {
		s.writeQueryError(w, r, err, "page metrics query failed")
		return
	}
	httputil.WriteSuccess(w, samples)
}

func (s *QueryServer) getSessionJourney(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := httputil.ParsePathStringOrError(w, r, "sessionId")
	if !ok {
		return
	}

	steps, err := s.service.GetSessionJourney(r.Context(), sessionID)
	if err != nil {
		s.writeQueryError(w, r, err, "session journey query failed")
		return
	}
	httputil.WriteSuccess(w, steps)
}

func (s *QueryServer) getSessionErrors(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := httputil.ParsePathStringOrError(w, r, "sessionId")
	if !ok {
		return
	}

	errs, err := s.service.GetSessionErrors(r.Context(), sessionID)
	if err != nil {
		s.writeQueryError(w, r, err, "session errors query failed")
		return
	}
	httputil.WriteSuccess(w, errs)
}

// writeQueryError maps service errors to status codes: whitelist
// violations are the client's fault, everything else is a 500.
func (s *QueryServer) writeQueryError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, metrics.ErrInvalidDimension) || errors.Is(err, metrics.ErrInvalidMetric) {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.WithError(err).WithField("path", r.URL.Path).Error(msg)
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, msg)
}
