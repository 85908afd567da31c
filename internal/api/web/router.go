// Package web serves the widget page and its websocket endpoint.
package web

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/spinbox/internal/app/session"
)

//go:embed templates/index.html
var indexHTML string

var indexPage = template.Must(template.New("index").Parse(indexHTML))

// PageData is rendered into the widget page.
type PageData struct {
	Title string
}

// NewRouter sets up the widget routes: the page, the websocket and the probes.
func NewRouter(title string, ws http.Handler, sess *session.Manager) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := indexPage.Execute(w, PageData{Title: title}); err != nil {
			zlog.Error().Msgf("web: failed to render page: %v", err)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(sess.Status())
	})

	r.Handle("/ws", ws)

	return r
}
