/**
 * @description
 * This file sets up the HTTP router for the ussd-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the standard middleware stack plus gateway authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// USSDRoutes creates and returns the router for the USSD gateway service.
func USSDRoutes(h *USSDHandlers, gatewayKey string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// The callback endpoint is only reachable by the aggregator.
	r.Group(func(r chi.Router) {
		r.Use(GatewayAuth(gatewayKey))
		r.Post("/ussd", h.CallbackHandler)
	})

	return r
}
