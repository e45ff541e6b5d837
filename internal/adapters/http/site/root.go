// Package site serves the landing page and the candidate join page that
// join links point at.
package site

import (
	"context"
	"net/http"
)

// Register attaches the site routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	pages := FS()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, pages, "index.html")
	})
	mux.HandleFunc("GET /join/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, pages, "join.html")
	})
}
