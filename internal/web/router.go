package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"memeatlas/internal/logger"
	"memeatlas/internal/metrics"
)

func (h *WebHandler) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(recoverer)

	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/generate_meme", h.GenerateMeme).Methods("POST")
	r.HandleFunc("/regenerate_meme", h.RegenerateMeme).Methods("POST")
	r.HandleFunc("/get_previous_memes", h.PreviousMemes).Methods("GET")

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})

	return r
}

// recoverer turns a handler panic into a JSON 500.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.L().Error("handler_panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
