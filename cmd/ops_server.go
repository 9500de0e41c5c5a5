package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"moneywave/models"
	"moneywave/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// OpsServer serves the metrics, health and operator endpoints
type OpsServer struct {
	httpServer *http.Server
}

// NewOpsServer creates the ops HTTP server listening on addr. Sponsor funding is
// accepted only when prizePool is set.
func NewOpsServer(addr string, checks map[string]HealthCheck, prizePool service.PrizePoolService) *OpsServer {
	return &OpsServer{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           newOpsRouter(checks, prizePool),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func newOpsRouter(checks map[string]HealthCheck, prizePool service.PrizePoolService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", handleReadyz(checks))
	r.Handle("/metrics", promhttp.Handler())
	if prizePool != nil {
		r.Post("/sponsor-contributions", handleSponsorContribution(prizePool))
	}
	return r
}

type sponsorContributionRequest struct {
	SponsorID string `json:"sponsor_id"`
	Amount    int64  `json:"amount"`
	Note      string `json:"note"`
}

func handleSponsorContribution(prizePool service.PrizePoolService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sponsorContributionRequest
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		contribution, err := prizePool.RecordSponsorContribution(r.Context(), req.SponsorID, req.Amount, req.Note)
		if err != nil {
			status := models.HTTPStatus(models.KindOf(err))
			if status >= http.StatusInternalServerError {
				log.WithError(err).Error("Failed to record sponsor contribution")
				writeJSON(w, status, map[string]string{"error": "internal error"})
				return
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusCreated, contribution)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}

func handleReadyz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		writeJSON(w, status, results)
	}
}

// Start serves until Stop is called
func (s *OpsServer) Start() error {
	log.WithField("addr", s.httpServer.Addr).Info("Ops server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *OpsServer) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
