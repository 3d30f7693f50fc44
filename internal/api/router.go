package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter registers the public routes. metrics may be nil.
func NewRouter(booking *BookingHandler, limiter *RateLimiter, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(MethodNotAllowed)

	// Public endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.Use(limiter.Middleware)
	api.HandleFunc("/book", booking.Book).Methods(http.MethodPost)

	// Ops endpoints
	r.HandleFunc("/healthz", Health).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return r
}

// Wrap applies the outer middleware: panic recovery, access logging and CORS.
// CORS sits outside the router so preflights and 404s carry the headers too.
func Wrap(router http.Handler, allowedOrigin string, logger *zap.Logger) http.Handler {
	h := CORS(allowedOrigin)(router)
	h = handlers.CustomLoggingHandler(io.Discard, h, accessLog(logger))
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger)),
		handlers.PrintRecoveryStack(true),
	)(h)
	return h
}

func accessLog(logger *zap.Logger) handlers.LogFormatter {
	return func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info("http request",
			zap.String("method", p.Request.Method),
			zap.String("path", p.URL.Path),
			zap.Int("status", p.StatusCode),
			zap.Int("size", p.Size),
			zap.String("remote", remoteHost(p.Request)),
			zap.String("forwarded_for", p.Request.Header.Get("X-Forwarded-For")),
			zap.Duration("elapsed", time.Since(p.TimeStamp)),
		)
	}
}
