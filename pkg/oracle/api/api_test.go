package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"github.com/verisage/oracle/pkg/oracle/health"
	"github.com/verisage/oracle/pkg/oracle/payment"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/types"
)

// stubAdmitter admits everything into the store, or returns a canned
// error.
type stubAdmitter struct {
	store    *store.MemoryStore
	admitErr error
}

func (a *stubAdmitter) Admit(ctx context.Context, req payment.AdmitRequest) (*types.Job, error) {
	if a.admitErr != nil {
		return nil, a.admitErr
	}
	if err := payment.ValidateInput(req.Kind, req.Input); err != nil {
		return nil, err
	}
	return a.store.Create(ctx, req.Kind, req.Input, types.PaymentInfo{
		PayerAddress: "0x2222222222222222222222222222222222222222",
		TxHash:       "0xdeadbeef",
		Network:      "base-sepolia",
	})
}

func (a *stubAdmitter) Address() string        { return "0x1111111111111111111111111111111111111111" }
func (a *stubAdmitter) Network() string        { return "base-sepolia" }
func (a *stubAdmitter) Price() string          { return "10000" }
func (a *stubAdmitter) PaymentsDisabled() bool { return false }

type stubHealth struct {
	snap health.Snapshot
}

func (h *stubHealth) Status() health.Snapshot { return h.snap }

type APITestSuite struct {
	suite.Suite
	server   *httptest.Server
	store    *store.MemoryStore
	admitter *stubAdmitter
	health   *stubHealth
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (s *APITestSuite) SetupTest() {
	s.store = store.NewMemoryStore()
	s.admitter = &stubAdmitter{store: s.store}
	s.health = &stubHealth{snap: health.Snapshot{Status: health.Healthy, QueuedJobs: 2, LastCheck: time.Now().UTC()}}

	handler, err := NewHandler(Config{
		Admitter: s.admitter,
		Jobs:     s.store,
		Health:   s.health,
		Version:  "v0.1.0-test",
		// keep the per-IP limiter out of the way
		RateLimit: 10000,
		RateBurst: 10000,
	})
	s.Require().NoError(err)

	router := chi.NewRouter()
	handler.RegisterRoutes(router)
	s.server = httptest.NewServer(router)
}

func (s *APITestSuite) TearDownTest() {
	s.server.Close()
}

func (s *APITestSuite) postJSON(path string, body any) *http.Response {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(raw))
	s.Require().NoError(err)
	return resp
}

func (s *APITestSuite) getJSON(path string, out any) *http.Response {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	if out != nil {
		defer resp.Body.Close()
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *APITestSuite) completeOneJob(decision types.Decision) *types.Job {
	claimed, err := s.store.Claim(context.Background())
	s.Require().NoError(err)
	s.Require().NotNil(claimed)
	err = s.store.Complete(context.Background(), claimed.ID, &types.ConsensusResult{
		Query:           claimed.Input,
		Kind:            claimed.Kind,
		FinalDecision:   decision,
		FinalConfidence: 0.9,
		Timestamp:       time.Now().UTC(),
	})
	s.Require().NoError(err)
	job, err := s.store.Get(context.Background(), claimed.ID)
	s.Require().NoError(err)
	return job
}

func (s *APITestSuite) TestSubmitQueryAccepted() {
	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "Did the Lakers win their last game?"})
	defer resp.Body.Close()
	s.Equal(http.StatusAccepted, resp.StatusCode)

	var envelope JobResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	s.NotEmpty(envelope.JobID)
	s.Equal(types.StatusPending, envelope.Status)
	s.Equal(types.KindFact, envelope.Kind)
}

func (s *APITestSuite) TestSubmitInvalidQuery() {
	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "short"})
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var errResp errorResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&errResp))
	s.Contains(errResp.Error, "characters")
}

func (s *APITestSuite) TestSubmitMalformedBody() {
	resp, err := http.Post(s.server.URL+"/api/v1/query", "application/json", bytes.NewReader([]byte("{not json")))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestPaymentRequiredReturnsChallenge() {
	s.admitter.admitErr = &payment.PaymentError{
		Reason: "no payment proof attached",
		Challenge: &payment.Challenge{
			X402Version: 1,
			Accepts: []payment.PaymentOption{{
				Scheme:            "exact",
				Network:           "base-sepolia",
				MaxAmountRequired: "10000",
				PayTo:             "0x1111111111111111111111111111111111111111",
			}},
		},
	}

	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "Did the Lakers win their last game?"})
	defer resp.Body.Close()
	s.Equal(http.StatusPaymentRequired, resp.StatusCode)

	var challenge payment.Challenge
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&challenge))
	s.Equal(1, challenge.X402Version)
	s.Require().Len(challenge.Accepts, 1)
	s.Equal("10000", challenge.Accepts[0].MaxAmountRequired)
}

func (s *APITestSuite) TestCapacityErrorReturns503() {
	s.admitter.admitErr = &payment.CapacityError{Status: "unhealthy", QueuedJobs: 130}

	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "Did the Lakers win their last game?"})
	defer resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *APITestSuite) TestAnalyzeTweetAccepted() {
	resp := s.postJSON("/api/v1/analyze-tweet", SubmitParams{TweetURL: "https://x.com/NASA/status/1790000000000000000"})
	defer resp.Body.Close()
	s.Equal(http.StatusAccepted, resp.StatusCode)

	var envelope JobResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	s.Equal(types.KindSocialPost, envelope.Kind)
}

func (s *APITestSuite) TestGetJobLifecycle() {
	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "Did the Lakers win their last game?"})
	var envelope JobResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&envelope))
	resp.Body.Close()

	var pending JobResponse
	getResp := s.getJSON("/api/v1/query/"+envelope.JobID, &pending)
	s.Equal(http.StatusOK, getResp.StatusCode)
	s.Equal(types.StatusPending, pending.Status)

	completed := s.completeOneJob(types.DecisionYes)

	var done JobResponse
	s.getJSON("/api/v1/query/"+completed.ID, &done)
	s.Equal(types.StatusCompleted, done.Status)
	s.Require().NotNil(done.Result)
	s.Equal(types.DecisionYes, done.Result.FinalDecision)

	// The settled payment travels with the job envelope.
	s.Equal("0x2222222222222222222222222222222222222222", done.PayerAddress)
	s.Equal("0xdeadbeef", done.TxHash)
	s.Equal("base-sepolia", done.Network)

	// Second read comes from the terminal-result cache.
	var cached JobResponse
	s.getJSON("/api/v1/query/"+completed.ID, &cached)
	s.Equal(done.Result.FinalDecision, cached.Result.FinalDecision)
}

func (s *APITestSuite) TestGetJobNotFound() {
	resp := s.getJSON("/api/v1/query/550e8400-e29b-41d4-a716-446655440000", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *APITestSuite) TestRecentDefaultsAndLimits() {
	for i := 0; i < 7; i++ {
		resp := s.postJSON("/api/v1/query", SubmitParams{Query: fmt.Sprintf("Is question number %d interesting enough?", i)})
		resp.Body.Close()
		s.completeOneJob(types.DecisionYes)
	}

	var recent []JobResponse
	s.getJSON("/api/v1/recent", &recent)
	s.Len(recent, 5) // default limit

	s.getJSON("/api/v1/recent?limit=2", &recent)
	s.Len(recent, 2)

	s.getJSON("/api/v1/recent?limit=100", &recent)
	s.Len(recent, 7) // capped at 20, only 7 exist

	resp := s.getJSON("/api/v1/recent?limit=0", nil)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *APITestSuite) TestRecentFilters() {
	resp := s.postJSON("/api/v1/query", SubmitParams{Query: "Is this query certain beyond any doubt?"})
	resp.Body.Close()
	s.completeOneJob(types.DecisionUncertain)

	resp = s.postJSON("/api/v1/analyze-tweet", SubmitParams{TweetURL: "https://x.com/NASA/status/1790000000000000000"})
	resp.Body.Close()
	s.completeOneJob(types.VerdictCredible)

	var recent []JobResponse
	s.getJSON("/api/v1/recent?exclude_uncertain=true", &recent)
	s.Require().Len(recent, 1)
	s.Equal(types.VerdictCredible, recent[0].Result.FinalDecision)

	s.getJSON("/api/v1/recent?query_type=social-post", &recent)
	s.Require().Len(recent, 1)
	s.Equal(types.KindSocialPost, recent[0].Kind)

	badResp := s.getJSON("/api/v1/recent?query_type=weather", nil)
	defer badResp.Body.Close()
	s.Equal(http.StatusBadRequest, badResp.StatusCode)
}

func (s *APITestSuite) TestHealthEndpoint() {
	var snap HealthResponse
	resp := s.getJSON("/health", &snap)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(health.Healthy, snap.Status)
	s.Equal(2, snap.QueuedJobs)
}

func (s *APITestSuite) TestServerBindsConfiguredHost() {
	handler, err := NewHandler(Config{Admitter: s.admitter, Jobs: s.store, Health: s.health})
	s.Require().NoError(err)

	srv := NewServer(handler, "127.0.0.1", 9321)
	s.Equal("127.0.0.1:9321", srv.server.Addr)
}

func (s *APITestSuite) TestInfoEndpoint() {
	var info InfoResponse
	resp := s.getJSON("/info", &info)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("0x1111111111111111111111111111111111111111", info.PaymentAddress)
	s.Equal("base-sepolia", info.PaymentNetwork)
	s.Equal("10000", info.PricePerQuery)
	s.True(info.PaymentsEnabled)
	s.Equal("v0.1.0-test", info.Version)
}
