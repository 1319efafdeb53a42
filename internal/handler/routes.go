package handler

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router registers the API routes. Everything except /health runs behind authn.
func (h *Handler) Router(authn mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h.respondJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Protected routes
	api := r.NewRoute().Subrouter()
	api.Use(authn)
	api.HandleFunc("/cards", h.PostCards).Methods(http.MethodPost)
	api.HandleFunc("/cards", h.GetCards).Methods(http.MethodGet)
	api.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id:[0-9]+}/transfers", h.TransferHistory).Methods(http.MethodGet)
	api.HandleFunc("/cards/{id:[0-9]+}/statement", h.Statement).Methods(http.MethodGet)

	return r
}
