package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Get("/status", g.handleStatus())

	if g.metrics != nil {
		r.Handle("/metrics", g.metrics.Handler())
	}

	if g.takes != nil {
		r.Route("/api/takes", func(r chi.Router) {
			r.Get("/", g.handleListTakes())
			r.Post("/", g.handleRecordTake())
		})
	}

	if g.fetcher != nil {
		r.Post("/api/downloads", g.handleDownload())
	}

	if g.watchdog != nil {
		r.Get("/ws/events", g.handleEvents())
	}

	return r
}
