package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/notfartdev/zdoge-shielded-core/pkg/types"
)

// maxRelayerRetries caps 5xx/network retries; 4xx failures are permanent
// and never retried (spec.md §4.10, §7).
const maxRelayerRetries = 3

// quoteTTL bounds how long a cached RelayerQuote is served before a fresh
// GET /relay/info is required (spec.md §5 "refreshed at most once per
// minute").
const quoteTTL = time.Minute

// Relayer is an HTTP client for the relayer service spec.md §6 describes.
type Relayer struct {
	baseURL string
	http    *http.Client

	cachedQuote   *types.RelayerQuote
	cachedAt      time.Time
}

// NewRelayer constructs a client against baseURL (e.g.
// "https://relayer.example.com/api/shielded").
func NewRelayer(baseURL string, httpClient *http.Client) *Relayer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Relayer{baseURL: baseURL, http: httpClient}
}

type relayerInfoResponse struct {
	Available  bool   `json:"available"`
	Address    string `json:"address"`
	FeePercent string `json:"feePercent"`
	MinFee     string `json:"minFee"`
}

// Info fetches (or returns a cached) RelayerQuote. The cache honors
// quoteTTL; callers needing a guaranteed-fresh quote should not rely on
// this for anything but display.
func (r *Relayer) Info(ctx context.Context) (*types.RelayerQuote, error) {
	if r.cachedQuote != nil && time.Since(r.cachedAt) < quoteTTL {
		return r.cachedQuote, nil
	}

	var resp relayerInfoResponse
	if err := r.doJSON(ctx, http.MethodGet, "/relay/info", nil, &resp); err != nil {
		return nil, err
	}

	feePercent, err := decimal.NewFromString(resp.FeePercent)
	if err != nil {
		return nil, fmt.Errorf("adapters: relayer: parsing feePercent: %w", err)
	}
	minFee, err := uint256FromDecimalString(resp.MinFee)
	if err != nil {
		return nil, fmt.Errorf("adapters: relayer: parsing minFee: %w", err)
	}

	quote := &types.RelayerQuote{
		Available:      resp.Available,
		RelayerAddress: common.HexToAddress(resp.Address),
		FeePercent:     feePercent,
		MinFee:         minFee,
	}
	r.cachedQuote = quote
	r.cachedAt = time.Now()
	return quote, nil
}

func uint256FromDecimalString(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	v, overflow := uint256.FromBig(d.BigInt())
	if overflow {
		return nil, types.ErrCryptoInvariant
	}
	return v, nil
}

// TransferRequest/TransferResult mirror POST /relay/transfer's JSON shape
// (spec.md §6).
type TransferRequest struct {
	PoolAddress        string `json:"poolAddress"`
	Proof              string `json:"proof"`
	Root               string `json:"root"`
	NullifierHash      string `json:"nullifierHash"`
	OutputCommitment1  string `json:"outputCommitment1"`
	OutputCommitment2  string `json:"outputCommitment2"`
	EncryptedMemo1     string `json:"encryptedMemo1"`
	EncryptedMemo2     string `json:"encryptedMemo2"`
	Fee                string `json:"fee"`
}

type TransferResult struct {
	TxHash     string `json:"txHash"`
	LeafIndex1 uint64 `json:"leafIndex1"`
	LeafIndex2 uint64 `json:"leafIndex2"`
}

func (r *Relayer) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	var out TransferResult
	if err := r.doJSON(ctx, http.MethodPost, "/relay/transfer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type UnshieldRequest struct {
	PoolAddress   string `json:"poolAddress"`
	Proof         string `json:"proof"`
	Root          string `json:"root"`
	NullifierHash string `json:"nullifierHash"`
	Recipient     string `json:"recipient"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	Token         string `json:"token"`
}

type UnshieldResult struct {
	TxHash        string `json:"txHash"`
	AmountReceived string `json:"amountReceived"`
	Fee           string `json:"fee"`
}

func (r *Relayer) Unshield(ctx context.Context, req UnshieldRequest) (*UnshieldResult, error) {
	var out UnshieldResult
	if err := r.doJSON(ctx, http.MethodPost, "/relay/unshield", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NullifierStatus reports whether the pool already knows about a
// nullifier (spec.md §6's GET .../nullifier/{hash}).
func (r *Relayer) NullifierStatus(ctx context.Context, poolAddress, nullifierHash string) (bool, error) {
	var out struct {
		IsSpent bool `json:"isSpent"`
	}
	path := fmt.Sprintf("/pool/%s/nullifier/%s", poolAddress, nullifierHash)
	if err := r.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.IsSpent, nil
}

// doJSON performs one HTTP round trip with body (if non-nil) marshaled as
// the JSON request, decoding the response into out. 4xx responses are
// permanent failures surfaced immediately; 5xx and transport errors are
// retried up to maxRelayerRetries times with jittered backoff (spec.md
// §4.10, §7).
func (r *Relayer) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("adapters: relayer: marshaling request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= maxRelayerRetries; attempt++ {
		if attempt > 0 {
			jitter := time.Duration(rand.Int63n(int64(250 * time.Millisecond)))
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("adapters: relayer: building request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := r.http.Do(req)
		if err != nil {
			lastErr = types.NewOpError("adapters.relayer", types.KindRelayerUnavailable, err)
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = types.NewOpError("adapters.relayer", types.KindRelayerUnavailable, readErr)
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return types.NewOpError("adapters.relayer", types.KindUserInput, fmt.Errorf("relayer rejected request (%d): %s", resp.StatusCode, data))
		}
		if resp.StatusCode >= 500 {
			lastErr = types.NewOpError("adapters.relayer", types.KindRelayerUnavailable, fmt.Errorf("relayer server error (%d): %s", resp.StatusCode, data))
			continue
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("adapters: relayer: decoding response: %w", err)
		}
		return nil
	}

	return lastErr
}
