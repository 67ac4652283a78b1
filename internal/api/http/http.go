// Package http is the Motion Dispatcher's ingress adapter: a minimal chi
// router exposing POST /motion, decoding the envelope and calling
// dispatcher.Handle. The production broker/rule integration that feeds
// motion events is out of scope; this is a stand-in driver for local
// running and integration tests.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/spottypottysense/motionengine/internal/app/dispatcher"
)

// NewRouter builds the chi router wired to d.
func NewRouter(d *dispatcher.Dispatcher, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/motion", handleMotion(d, log))
	return r
}

func handleMotion(d *dispatcher.Dispatcher, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env dispatcher.MotionEventEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid request body"})
			return
		}
		if env.SensorID == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "sensorId is required"})
			return
		}

		ev, err := d.Handle(r.Context(), env)
		if err != nil {
			log.Error().Err(err).Str("sensorId", env.SensorID).Msg("failed to record motion event")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"eventId":     ev.EventID,
			"actionTaken": ev.ActionTaken,
			"sessionId":   ev.SessionID,
		})
	}
}
