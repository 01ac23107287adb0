package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-chi/chi/v5"

	"github.com/verisage/oracle/internal/metric"
	"github.com/verisage/oracle/pkg/oracle/health"
	"github.com/verisage/oracle/pkg/oracle/payment"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/types"
)

const (
	// PaymentHeader carries the encoded x402 payment proof.
	PaymentHeader = "X-Payment"

	defaultRecentLimit = 5
	maxRecentLimit     = 20

	resultCacheSize = 16 * 1024 * 1024
	resultCacheTTL  = 10 * time.Minute
)

// Admitter runs the admission path for a raw submission.
type Admitter interface {
	Admit(ctx context.Context, req payment.AdmitRequest) (*types.Job, error)
	Address() string
	Network() string
	Price() string
	PaymentsDisabled() bool
}

// JobReader is the read side of the job store used by the handler.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*types.Job, error)
	RecentCompleted(ctx context.Context, filter store.RecentFilter) ([]*types.Job, error)
}

// HealthSource serves cached health snapshots.
type HealthSource interface {
	Status() health.Snapshot
}

type Config struct {
	Admitter Admitter
	Jobs     JobReader
	Health   HealthSource
	// Version is reported by the info endpoint.
	Version string
	// RateLimit is requests per second per IP; RateBurst the bucket
	// size. Zero values use the defaults.
	RateLimit float64
	RateBurst int
}

// Handler handles HTTP requests
type Handler struct {
	admitter  Admitter
	jobs      JobReader
	health    HealthSource
	version   string
	rateLimit float64
	rateBurst int

	// resultCache holds serialized terminal job envelopes. Terminal
	// states are immutable so a cached entry can never be stale.
	resultCache *freecache.Cache
}

// user submission params
type SubmitParams struct {
	Query    string `json:"query,omitempty"`
	TweetURL string `json:"tweet_url,omitempty"`
}

// job envelope returned by POST and GET
type JobResponse struct {
	JobID       string                 `json:"job_id"`
	Status      types.JobStatus        `json:"status"`
	Kind        types.JobKind          `json:"query_type"`
	Input       string                 `json:"input,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Result      *types.ConsensusResult `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Message     string                 `json:"message,omitempty"`

	// settled payment that admitted the job
	PayerAddress string `json:"payer_address,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	Network      string `json:"network,omitempty"`
}

type HealthResponse struct {
	Status     health.Status `json:"status"`
	QueuedJobs int           `json:"queued_jobs"`
	LastCheck  time.Time     `json:"last_check"`
}

type InfoResponse struct {
	PaymentAddress  string `json:"payment_address"`
	PaymentNetwork  string `json:"payment_network"`
	PricePerQuery   string `json:"price_per_query"`
	PaymentsEnabled bool   `json:"payments_enabled"`
	Version         string `json:"version"`
}

// NewHandler creates a new handler
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Admitter == nil {
		return nil, fmt.Errorf("[API] Admitter not initialized")
	}
	if cfg.Jobs == nil {
		return nil, fmt.Errorf("[API] Job reader not initialized")
	}
	if cfg.Health == nil {
		return nil, fmt.Errorf("[API] Health source not initialized")
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &Handler{
		admitter:    cfg.Admitter,
		jobs:        cfg.Jobs,
		health:      cfg.Health,
		version:     cfg.Version,
		rateLimit:   cfg.RateLimit,
		rateBurst:   cfg.RateBurst,
		resultCache: freecache.NewCache(resultCacheSize),
	}, nil
}

// SubmitQuery accepts a fact verification query.
func (h *Handler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	var params SubmitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.submit(w, r, types.KindFact, params.Query)
}

// AnalyzeTweet accepts a social post credibility query.
func (h *Handler) AnalyzeTweet(w http.ResponseWriter, r *http.Request) {
	var params SubmitParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.submit(w, r, types.KindSocialPost, params.TweetURL)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, kind types.JobKind, input string) {
	metric.RecordRequest(r.Method, r.URL.Path)
	start := time.Now()
	defer func() {
		metric.RecordRequestDuration(r.Method, r.URL.Path, time.Since(start))
	}()

	job, err := h.admitter.Admit(r.Context(), payment.AdmitRequest{
		Kind:          kind,
		Input:         input,
		PaymentHeader: r.Header.Get(PaymentHeader),
		Resource:      r.URL.Path,
	})
	if err != nil {
		h.writeAdmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, JobResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Kind:      job.Kind,
		CreatedAt: job.CreatedAt,
		Message:   "Job accepted. Poll the status endpoint for the result.",
	})
}

// writeAdmitError maps admission errors onto HTTP statuses. A payment
// error with a challenge answers 402 with the challenge itself as the
// body, matching the x402 header flow.
func (h *Handler) writeAdmitError(w http.ResponseWriter, err error) {
	var validationErr *payment.ValidationError
	if errors.As(err, &validationErr) {
		metric.RecordError("validation")
		writeError(w, http.StatusBadRequest, validationErr.Reason)
		return
	}

	var paymentErr *payment.PaymentError
	if errors.As(err, &paymentErr) {
		metric.RecordError("payment")
		if paymentErr.Challenge != nil {
			writeJSON(w, http.StatusPaymentRequired, paymentErr.Challenge)
			return
		}
		writeError(w, http.StatusPaymentRequired, paymentErr.Reason)
		return
	}

	var capacityErr *payment.CapacityError
	if errors.As(err, &capacityErr) {
		metric.RecordError("capacity")
		writeError(w, http.StatusServiceUnavailable, capacityErr.Error())
		return
	}

	metric.RecordError("internal")
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// GetJob returns the current state of a job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if cached, err := h.resultCache.Get([]byte(jobID)); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load job")
		return
	}

	resp := jobResponse(job)
	if job.Terminal() {
		if body, err := json.Marshal(resp); err == nil {
			_ = h.resultCache.Set([]byte(jobID), body, int(resultCacheTTL.Seconds()))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRecent returns the newest completed jobs.
func (h *Handler) GetRecent(w http.ResponseWriter, r *http.Request) {
	filter := store.RecentFilter{Limit: defaultRecentLimit}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		if limit > maxRecentLimit {
			limit = maxRecentLimit
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("exclude_uncertain"); raw != "" {
		filter.ExcludeUncertain = raw == "true" || raw == "1"
	}
	if raw := r.URL.Query().Get("query_type"); raw != "" {
		kind := types.JobKind(raw)
		if kind != types.KindFact && kind != types.KindSocialPost {
			writeError(w, http.StatusBadRequest, "Invalid query_type")
			return
		}
		filter.Kind = kind
	}

	jobs, err := h.jobs.RecentCompleted(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load recent jobs")
		return
	}

	responses := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, responses)
}

// GetHealth returns the cached health snapshot.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.health.Status()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     snap.Status,
		QueuedJobs: snap.QueuedJobs,
		LastCheck:  snap.LastCheck,
	})
}

// GetInfo returns payment parameters and service flags.
func (h *Handler) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		PaymentAddress:  h.admitter.Address(),
		PaymentNetwork:  h.admitter.Network(),
		PricePerQuery:   h.admitter.Price(),
		PaymentsEnabled: !h.admitter.PaymentsDisabled(),
		Version:         h.version,
	})
}

func jobResponse(job *types.Job) JobResponse {
	return JobResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Kind:         job.Kind,
		Input:        job.Input,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
		Result:       job.Result,
		Error:        job.Error,
		PayerAddress: job.Payment.PayerAddress,
		TxHash:       job.Payment.TxHash,
		Network:      job.Payment.Network,
	}
}
