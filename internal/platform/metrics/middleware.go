package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// unmatchedRoute labels requests no route pattern matched.
const unmatchedRoute = "unmatched"

// RequestMiddleware counts every request by chi route pattern, and every
// response with status >= 400 as an error. It must be mounted on a chi router.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = unmatchedRoute
			}
			m.IncRequests(route)
			if ww.Status() >= http.StatusBadRequest {
				m.IncErrors(route)
			}
		})
	}
}
