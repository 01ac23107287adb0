package payment

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/verisage/oracle/pkg/common/crypto/signer"
)

// Challenge is the structured 402 body describing how to pay. The
// shape follows the x402 protocol's accepts envelope.
type Challenge struct {
	X402Version int             `json:"x402Version"`
	Error       string          `json:"error,omitempty"`
	Accepts     []PaymentOption `json:"accepts"`
}

// PaymentOption is one acceptable payment scheme/network pair.
type PaymentOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	PayTo             string `json:"payTo"`
	Asset             string `json:"asset,omitempty"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
}

// Authorization is the transfer the payer signed. Nonce is the unique
// settlement identifier used for replay prevention.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// Proof is a decoded payment proof from the X-Payment header. The
// exact wire format is owned by the payment-protocol collaborator;
// this is the subset the gate consumes.
type Proof struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`
	Payload     struct {
		Signature     string        `json:"signature"`
		Authorization Authorization `json:"authorization"`
	} `json:"payload"`
}

// DecodeProof decodes a base64 X-Payment header value.
func DecodeProof(header string) (*Proof, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return nil, fmt.Errorf("header is not valid base64: %w", err)
	}
	var proof Proof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return nil, fmt.Errorf("header is not a valid payment proof: %w", err)
	}
	return &proof, nil
}

// Verify checks proof plausibility before settlement: required fields,
// validity window, and that the authorization signature recovers to
// the declared payer. Settlement-level validity stays with the
// facilitator.
func (p *Proof) Verify(now time.Time) error {
	auth := p.Payload.Authorization
	if !ethcommon.IsHexAddress(auth.From) {
		return fmt.Errorf("invalid payer address %q", auth.From)
	}
	if !ethcommon.IsHexAddress(auth.To) {
		return fmt.Errorf("invalid pay-to address %q", auth.To)
	}
	if auth.Nonce == "" {
		return fmt.Errorf("missing settlement nonce")
	}

	if auth.ValidAfter != "" {
		after, err := strconv.ParseInt(auth.ValidAfter, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid validAfter: %w", err)
		}
		if now.Unix() < after {
			return fmt.Errorf("authorization not yet valid")
		}
	}
	if auth.ValidBefore != "" {
		before, err := strconv.ParseInt(auth.ValidBefore, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid validBefore: %w", err)
		}
		if now.Unix() >= before {
			return fmt.Errorf("authorization expired")
		}
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(p.Payload.Signature, "0x"))
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	message, err := json.Marshal(auth)
	if err != nil {
		return fmt.Errorf("failed to encode authorization: %w", err)
	}
	if !signer.VerifySignature(ethcommon.HexToAddress(auth.From), message, sig) {
		return fmt.Errorf("signature does not match payer %s", auth.From)
	}
	return nil
}

// SignAuthorization produces the proof signature for an authorization.
// Used by tests and local tooling; real clients sign in their wallet.
func SignAuthorization(s signer.Signer, auth Authorization) (string, error) {
	message, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	sig, err := s.Sign(message)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}
