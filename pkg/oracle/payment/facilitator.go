package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Facilitator settles payment proofs on the payment network. The
// settlement transaction lifecycle is entirely the facilitator's
// concern; the gate only consumes the outcome.
type Facilitator interface {
	Settle(ctx context.Context, proof *Proof) (*SettleResponse, error)
}

// SettleResponse is the facilitator's settlement outcome.
type SettleResponse struct {
	Success bool   `json:"success"`
	Payer   string `json:"payer"`
	TxHash  string `json:"transaction"`
	Network string `json:"network"`
	Reason  string `json:"errorReason,omitempty"`
}

// HTTPFacilitator talks to an x402 facilitator service.
type HTTPFacilitator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPFacilitator(baseURL string, timeout time.Duration) *HTTPFacilitator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPFacilitator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFacilitator) Settle(ctx context.Context, proof *Proof) (*SettleResponse, error) {
	body, err := json.Marshal(map[string]any{"paymentPayload": proof})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("facilitator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("facilitator error (status %d): %s", resp.StatusCode, string(msg))
	}
	var settled SettleResponse
	if err := json.NewDecoder(resp.Body).Decode(&settled); err != nil {
		return nil, fmt.Errorf("invalid facilitator response: %w", err)
	}
	return &settled, nil
}
