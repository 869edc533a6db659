package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/beacon/pkg/httputil"
	"github.com/platinummonkey/beacon/pkg/ingest"
	"github.com/platinummonkey/beacon/pkg/observability"
	"github.com/platinummonkey/beacon/pkg/queue"
)

// maxBodyBytes caps ingest payloads. A full 1000-event batch fits well
// under this.
const maxBodyBytes = 2 << 20

// IngestServer accepts telemetry payloads and enqueues them for the
// workers. Validation failures are rejected with the full list of
// violations; accepted payloads get a 202 before any database work
// happens.
type IngestServer struct {
	metricsQueue *queue.Queue
	errorsQueue  *queue.Queue
	router       *mux.Router
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// NewIngestServer creates the ingest API. metrics may be nil.
func NewIngestServer(metricsQueue, errorsQueue *queue.Queue, logger *observability.Logger, metrics *observability.Metrics) *IngestServer {
	s := &IngestServer{
		metricsQueue: metricsQueue,
		errorsQueue:  errorsQueue,
		router:       mux.NewRouter(),
		logger:       logger,
		metrics:      metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the ingest routes
func (s *IngestServer) setupRoutes() {
	s.router.Use(httputil.MaxBytesMiddleware(maxBodyBytes))
	s.router.HandleFunc("/v1/ingest", s.handleIngest).Methods("POST")
	s.router.HandleFunc("/v1/errors", s.handleErrors).Methods("POST")
}

// Router exposes the route tree so binaries can mount middleware
// around it.
func (s *IngestServer) Router() *mux.Router {
	return s.router
}

func (s *IngestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// handleIngest accepts a batch of telemetry events.
func (s *IngestServer) handleIngest(w http.ResponseWriter, r *http.Request) {
	var batch ingest.Batch
	if !httputil.ParseJSONOrError(w, r, &batch) {
		return
	}

	if details := ingest.ValidateBatch(&batch); len(details) > 0 {
		if s.metrics != nil {
			s.metrics.BatchesRejectedTotal.Inc()
		}
		httputil.WriteValidationDetails(w, details)
		return
	}

	if _, err := s.metricsQueue.Enqueue(r.Context(), "metrics", &batch); err != nil {
		s.logger.WithError(err).
			WithField("project_key", batch.ProjectKey).
			Error("failed to enqueue metrics batch")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to accept batch")
		return
	}

	if s.metrics != nil {
		for _, ev := range batch.Events {
			s.metrics.EventsIngestedTotal.WithLabelValues(ev.Type).Inc()
		}
		if q, err := s.metricsQueue.Depth(r.Context()); err == nil {
			s.metrics.QueueDepth.WithLabelValues(s.metricsQueue.Name()).Set(float64(q))
		}
	}

	httputil.WriteAccepted(w)
}

// handleErrors accepts a single JavaScript error report.
func (s *IngestServer) handleErrors(w http.ResponseWriter, r *http.Request) {
	var report ingest.ErrorReport
	if !httputil.ParseJSONOrError(w, r, &report) {
		return
	}

	if details := ingest.ValidateErrorReport(&report); len(details) > 0 {
		if s.metrics != nil {
			s.metrics.BatchesRejectedTotal.Inc()
		}
		httputil.WriteValidationDetails(w, details)
		return
	}

	if _, err := s.errorsQueue.Enqueue(r.Context(), "errors", &report); err != nil {
		s.logger.WithError(err).
			WithField("project_key", report.ProjectKey).
			Error("failed to enqueue error report")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to accept error report")
		return
	}

	if s.metrics != nil {
		s.metrics.EventsIngestedTotal.WithLabelValues(ingest.EventTypeError).Inc()
	}

	httputil.WriteAccepted(w)
}
