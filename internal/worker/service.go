// Package worker provides the HTTP and gRPC surface of the gait tracker.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/metric"

	"github.com/DTPriya20/click-gait/internal/classifier"
	"github.com/DTPriya20/click-gait/internal/config"
	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/internal/tracker"
	"github.com/DTPriya20/click-gait/internal/worker/docs"
	"github.com/DTPriya20/click-gait/internal/worker/history"
	"github.com/DTPriya20/click-gait/internal/worker/session"
	"github.com/DTPriya20/click-gait/internal/worker/sse"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// requestScopedStore is implemented by stores that keep state in the HTTP
// exchange itself and must wrap every session route.
type requestScopedStore interface {
	Middleware(next http.Handler) http.Handler
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Service.
type Options struct {
	Version    string
	Config     *config.Config
	Classifier classifier.Classifier
	Store      store.Store
	Meter      metric.Meter     // nil uses the global provider
	Clock      func() time.Time // nil uses time.Now
}

// Service owns the router and every per-process component behind it.
type Service struct {
	version        string
	config         *config.Config
	classifier     classifier.Classifier
	store          store.Store
	sessionManager *session.Manager
	sseBroadcaster *sse.Broadcaster
	history        *history.Ring
	metrics        *metrics
	router         *chi.Mux
	now            func() time.Time

	ready     atomic.Bool
	startTime time.Time
}

// NewService wires a service. It does not close opts.Store on failure.
func NewService(opts Options) (*Service, error) {
	if opts.Classifier == nil {
		return nil, errors.New("worker: classifier is required")
	}
	if opts.Store == nil {
		return nil, errors.New("worker: store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	svc := &Service{
		version:        opts.Version,
		config:         cfg,
		classifier:     opts.Classifier,
		store:          opts.Store,
		sessionManager: session.NewManager(opts.Store, session.WithClock(now)),
		sseBroadcaster: sse.NewBroadcaster(),
		history:        history.NewRing(cfg.HistorySize),
		router:         chi.NewRouter(),
		now:            now,
		startTime:      now(),
	}

	m, err := newMetrics(opts.Meter, svc.sseBroadcaster.ClientCount, svc.sessionManager.ActiveCount)
	if err != nil {
		svc.sessionManager.Shutdown()
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	svc.metrics = m

	docs.SwaggerInfo.Version = opts.Version
	svc.setupRoutes()
	svc.ready.Store(true)
	return svc, nil
}

// Handler returns the HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

// Shutdown marks the service unready and stops background work. The store
// and classifier belong to the caller.
func (s *Service) Shutdown() {
	s.ready.Store(false)
	s.sessionManager.Shutdown()
	if err := s.metrics.close(); err != nil {
		log.Warn().Err(err).Msg("Failed to unregister metrics callback")
	}
}

func (s *Service) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(s.cors)

	r.Get("/", s.handleWelcome)
	r.Get("/health", s.handleHealth)
	r.Get("/dashboard", serveDashboard)
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(s.identify)
		if scoped, ok := s.store.(requestScopedStore); ok {
			r.Use(scoped.Middleware)
		}

		r.Post("/predict", s.handlePredict)
		r.Get("/session_summary", s.handleSessionSummary)
		r.Post("/session_summary", s.handleSessionSummary)
		r.Get("/reset_session", s.handleResetSession)
		r.Post("/reset_session", s.handleResetSession)
		r.Get("/api/predictions", s.handlePredictions)
		r.Get("/api/events", s.handleEvents)
	})
}

// predict runs one classification through the session and fans the result
// out to the prediction log, the event stream and metrics.
func (s *Service) predict(ctx context.Context, sessionID string, features []float64, at *time.Time) (models.EventOutcome, error) {
	start := time.Now()

	result, err := s.classifier.Classify(ctx, features)
	if err != nil {
		s.metrics.recordFailure(ctx, failureReason(err))
		return models.EventOutcome{}, err
	}

	outcome, err := s.sessionManager.Record(ctx, sessionID, result, at)
	if err != nil {
		s.metrics.recordFailure(ctx, failureReason(err))
		return models.EventOutcome{}, err
	}

	recordedAt := s.now()
	if at != nil {
		recordedAt = *at
	}
	s.history.Add(models.PredictionRecord{SessionID: sessionID, Timestamp: recordedAt, Outcome: outcome})
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventPrediction, SessionID: sessionID, Time: recordedAt, Data: outcome})
	if outcome.Warning != nil {
		s.sseBroadcaster.Publish(sse.Event{Type: sse.EventWarning, SessionID: sessionID, Time: recordedAt, Data: map[string]any{
			"message":                *outcome.Warning,
			"unknown_movement_count": outcome.UnknownCount,
		}})
		log.Warn().Str("session", sessionID).Int("unknown", outcome.UnknownCount).Msg("Persistent unknown movement")
	}
	s.metrics.recordPrediction(ctx, outcome.MovementType, outcome.Warning != nil, time.Since(start))

	log.Info().
		Str("session", sessionID).
		Str("movement", outcome.MovementType).
		Int("id", outcome.Prediction).
		Msg("Prediction")
	log.Debug().Floats64("probabilities", outcome.Probabilities).Msg("Prediction probabilities")

	return outcome, nil
}

func (s *Service) summary(ctx context.Context, sessionID string) (models.Summary, error) {
	return s.sessionManager.Summary(ctx, sessionID)
}

func (s *Service) reset(ctx context.Context, sessionID string) error {
	if err := s.sessionManager.Reset(ctx, sessionID); err != nil {
		return err
	}
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventReset, SessionID: sessionID, Time: s.now()})
	log.Info().Str("session", sessionID).Msg("Session reset")
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, classifier.ErrDimension), errors.Is(err, tracker.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, tracker.ErrOutOfOrder):
		return "out_of_order"
	case errors.Is(err, classifier.ErrUnavailable):
		return "classifier_unavailable"
	default:
		return "internal"
	}
}

// httpStatus maps domain errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, classifier.ErrDimension), errors.Is(err, tracker.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, classifier.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
