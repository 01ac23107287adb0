package api

import (
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

func (h *Handler) RegisterRoutes(r chi.Router) {
	// create rate limiter: default 5 requests per second, burst 10
	rateLimiter := NewRateLimiter(rate.Limit(h.rateLimit), h.rateBurst)

	// apply rate limit middleware
	r.Use(rateLimiter.RateLimit)

	// register routes
	r.Post("/api/v1/query", h.SubmitQuery)
	r.Post("/api/v1/analyze-tweet", h.AnalyzeTweet)
	r.Get("/api/v1/query/{jobID}", h.GetJob)
	r.Get("/api/v1/recent", h.GetRecent)
	r.Get("/health", h.GetHealth)
	r.Get("/info", h.GetInfo)
}
