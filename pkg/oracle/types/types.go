package types

import (
	"time"
)

// JobKind identifies the kind of query a job carries.
type JobKind string

const (
	KindFact       JobKind = "fact"
	KindSocialPost JobKind = "social-post"
)

// JobStatus is the lifecycle state of a job. Transitions are strictly
// forward: pending -> processing -> completed|failed.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Decision is a provider vote or a final aggregated decision. Fact
// queries use yes/no/uncertain; social-post queries use
// credible/questionable/misleading/opinion.
type Decision string

const (
	DecisionYes       Decision = "yes"
	DecisionNo        Decision = "no"
	DecisionUncertain Decision = "uncertain"

	VerdictCredible     Decision = "credible"
	VerdictQuestionable Decision = "questionable"
	VerdictMisleading   Decision = "misleading"
	VerdictOpinion      Decision = "opinion"
)

// DecisionsFor returns the decision vocabulary for a job kind.
func DecisionsFor(kind JobKind) []Decision {
	if kind == KindSocialPost {
		return []Decision{VerdictCredible, VerdictQuestionable, VerdictMisleading, VerdictOpinion}
	}
	return []Decision{DecisionYes, DecisionNo, DecisionUncertain}
}

// UncertainValue returns the "could not decide" decision for a kind.
// Fact queries fall back to uncertain; social-post queries fall back to
// questionable.
func UncertainValue(kind JobKind) Decision {
	if kind == KindSocialPost {
		return VerdictQuestionable
	}
	return DecisionUncertain
}

// ValidDecision reports whether d belongs to the vocabulary of kind.
func ValidDecision(kind JobKind, d Decision) bool {
	for _, v := range DecisionsFor(kind) {
		if v == d {
			return true
		}
	}
	return false
}

// ProviderResponse is the recorded outcome of a single provider call.
// When Error is non-empty the response carried no usable vote and is
// excluded from scoring, but it is retained in the result for
// transparency.
type ProviderResponse struct {
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Decision    Decision `json:"decision"`
	Confidence  float64  `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	RawResponse string   `json:"raw_response,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ConsensusResult is the aggregated, optionally signed outcome of a
// job. Signature and PublicKey are set only by the result signer and
// are excluded from the canonical form that gets signed.
type ConsensusResult struct {
	Query           string             `json:"query"`
	Kind            JobKind            `json:"kind"`
	FinalDecision   Decision           `json:"final_decision"`
	FinalConfidence float64            `json:"final_confidence"`
	Explanation     string             `json:"explanation"`
	LLMResponses    []ProviderResponse `json:"llm_responses"`
	TotalWeight     float64            `json:"total_weight"`
	Timestamp       time.Time          `json:"timestamp"`
	Signature       string             `json:"signature,omitempty"`
	PublicKey       string             `json:"public_key,omitempty"`
}

// PaymentInfo records the settled payment that admitted a job.
type PaymentInfo struct {
	PayerAddress string `json:"payer_address,omitempty"`
	TxHash       string `json:"tx_hash,omitempty"`
	Network      string `json:"network,omitempty"`
}

// Job is the durable record of one submission. Result and Error are
// mutually exclusive and each is written exactly once, at the terminal
// transition that produces it.
type Job struct {
	ID          string           `json:"job_id"`
	Kind        JobKind          `json:"kind"`
	Input       string           `json:"query"`
	Status      JobStatus        `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Payment     PaymentInfo      `json:"payment,omitempty"`
	Result      *ConsensusResult `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}
