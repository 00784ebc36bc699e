package server

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
)

// LoggingMiddleware logs every API request with its status and duration.
// WebSocket upgrades are logged when the handler returns.
func LoggingMiddleware(logger *log.Logger, clk clock.Clock) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := clk.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Printf("%s %s %d %dB %s [%s]",
				r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(),
				clk.Since(start), middleware.GetReqID(r.Context()))
		})
	}
}
