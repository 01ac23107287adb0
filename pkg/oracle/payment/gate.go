package payment

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/verisage/oracle/internal/metric"
	"github.com/verisage/oracle/pkg/oracle/health"
	"github.com/verisage/oracle/pkg/oracle/store"
	"github.com/verisage/oracle/pkg/oracle/types"
)

// HealthSource is the backpressure signal consumed during admission.
type HealthSource interface {
	Status() health.Snapshot
}

// Config wires the gate's collaborators and pricing.
type Config struct {
	Store       store.JobStore
	Health      HealthSource
	Facilitator Facilitator
	Replay      ReplaySet

	// PayTo is the address payments must be made to.
	PayTo string
	// Network is the payment network identifier, e.g. base-sepolia.
	Network string
	// Price is the required amount in the asset's atomic units.
	Price string
	// Asset optionally names the payment asset contract.
	Asset string
	// SettleTimeout bounds the synchronous settlement call.
	SettleTimeout time.Duration

	// DisablePayments skips proof verification and settlement. For
	// local development only; refused in production config validation.
	DisablePayments bool
}

// AdmitRequest is one raw submission.
type AdmitRequest struct {
	Kind types.JobKind
	// Input is the raw query text or social-post URL.
	Input string
	// PaymentHeader is the encoded X-Payment header value, empty when
	// absent.
	PaymentHeader string
	// Resource is the endpoint path, echoed into the challenge.
	Resource string
}

// Gate is the admission controller: input validation, payment
// verification and settlement, replay prevention, and capacity
// control. On acceptance it creates the job in pending state.
type Gate struct {
	cfg Config
}

func NewGate(cfg Config) (*Gate, error) {
	if cfg.Store == nil {
		return nil, errors.New("[PaymentGate] store is nil")
	}
	if cfg.Health == nil {
		return nil, errors.New("[PaymentGate] health source is nil")
	}
	if !cfg.DisablePayments {
		if cfg.Facilitator == nil {
			return nil, errors.New("[PaymentGate] facilitator is nil")
		}
		if cfg.Replay == nil {
			return nil, errors.New("[PaymentGate] replay set is nil")
		}
		if cfg.PayTo == "" {
			return nil, errors.New("[PaymentGate] pay-to address is required")
		}
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = 30 * time.Second
	}
	return &Gate{cfg: cfg}, nil
}

// Admit runs the full admission path. It returns the created pending
// job, or a ValidationError, PaymentError, or CapacityError.
func (g *Gate) Admit(ctx context.Context, req AdmitRequest) (*types.Job, error) {
	// Fail fast on malformed input; nothing is consumed.
	if err := ValidateInput(req.Kind, req.Input); err != nil {
		return nil, err
	}

	var info types.PaymentInfo
	if !g.cfg.DisablePayments {
		settled, err := g.collectPayment(ctx, req)
		if err != nil {
			return nil, err
		}
		info = types.PaymentInfo{
			PayerAddress: settled.Payer,
			TxHash:       settled.TxHash,
			Network:      settled.Network,
		}
	}

	// Capacity check happens after payment, matching the documented
	// client contract: check /health before paying.
	if snap := g.cfg.Health.Status(); snap.Status == health.Unhealthy {
		return nil, &CapacityError{Status: string(snap.Status), QueuedJobs: snap.QueuedJobs}
	}

	job, err := g.cfg.Store.Create(ctx, req.Kind, req.Input, info)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("job_id", job.ID).
		Str("kind", string(req.Kind)).
		Str("payer", info.PayerAddress).
		Msg("job admitted")
	return job, nil
}

// collectPayment verifies and settles the attached proof. The nonce is
// reserved in the replay set before settlement so concurrent duplicates
// cannot both settle; a failed settlement releases the reservation.
func (g *Gate) collectPayment(ctx context.Context, req AdmitRequest) (*SettleResponse, error) {
	if req.PaymentHeader == "" {
		return nil, &PaymentError{
			Reason:    "no payment proof attached",
			Challenge: g.Challenge(req.Resource, ""),
		}
	}

	proof, err := DecodeProof(req.PaymentHeader)
	if err != nil {
		return nil, &PaymentError{
			Reason:    err.Error(),
			Challenge: g.Challenge(req.Resource, err.Error()),
		}
	}
	if proof.Network != g.cfg.Network {
		return nil, &PaymentError{
			Reason:    "payment network not accepted: " + proof.Network,
			Challenge: g.Challenge(req.Resource, "unsupported network"),
		}
	}
	if err := proof.Verify(time.Now().UTC()); err != nil {
		return nil, &PaymentError{
			Reason:    err.Error(),
			Challenge: g.Challenge(req.Resource, err.Error()),
		}
	}

	nonce := proof.Payload.Authorization.Nonce
	reserved, err := g.cfg.Replay.Add(ctx, nonce)
	if err != nil {
		return nil, &PaymentError{Reason: "replay check failed: " + err.Error()}
	}
	if !reserved {
		return nil, &PaymentError{Reason: "payment proof already used", Replayed: true}
	}

	settleCtx, cancel := context.WithTimeout(ctx, g.cfg.SettleTimeout)
	defer cancel()
	settled, err := g.cfg.Facilitator.Settle(settleCtx, proof)
	if err != nil || !settled.Success {
		metric.PaymentsSettled.WithLabelValues("failure").Inc()
		if removeErr := g.cfg.Replay.Remove(ctx, nonce); removeErr != nil {
			log.Error().Err(removeErr).Str("nonce", nonce).Msg("failed to release payment nonce")
		}
		reason := "settlement failed"
		if err != nil {
			reason = err.Error()
		} else if settled.Reason != "" {
			reason = settled.Reason
		}
		return nil, &PaymentError{Reason: reason}
	}

	metric.PaymentsSettled.WithLabelValues("success").Inc()
	if settled.Payer == "" {
		settled.Payer = proof.Payload.Authorization.From
	}
	if settled.Network == "" {
		settled.Network = proof.Network
	}
	return settled, nil
}

// Challenge builds the structured 402 body for a resource.
func (g *Gate) Challenge(resource, reason string) *Challenge {
	return &Challenge{
		X402Version: 1,
		Error:       reason,
		Accepts: []PaymentOption{{
			Scheme:            "exact",
			Network:           g.cfg.Network,
			MaxAmountRequired: g.cfg.Price,
			PayTo:             g.cfg.PayTo,
			Asset:             g.cfg.Asset,
			Resource:          resource,
			Description:       "Trustless multi-LLM oracle query",
			MaxTimeoutSeconds: 60,
		}},
	}
}

// Address returns the configured pay-to address.
func (g *Gate) Address() string { return g.cfg.PayTo }

// Network returns the configured payment network.
func (g *Gate) Network() string { return g.cfg.Network }

// Price returns the configured price in atomic units.
func (g *Gate) Price() string { return g.cfg.Price }

// PaymentsDisabled reports whether the gate runs in debug bypass mode.
func (g *Gate) PaymentsDisabled() bool { return g.cfg.DisablePayments }
