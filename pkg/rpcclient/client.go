// Package rpcclient is a minimal JSON-RPC client for the ledger
// endpoints the Frostbite tooling needs: blockhash, transaction
// submission and confirmation, account readback and rent queries.
//
// Transport failures and throttling responses are retried with
// exponential backoff before surfacing; everything else is returned to
// the caller, classified through IsRetryable and IsBudgetExceeded.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/frostbite-labs/frostbite-go/internal/types"
)

// Commitment levels, weakest to strongest.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Config controls the client transport.
type Config struct {
	// Endpoint is the HTTP JSON-RPC URL.
	Endpoint string

	// HTTPClient overrides the transport. Nil uses a client with
	// RequestTimeout applied.
	HTTPClient *http.Client

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration

	// MaxRetries is how many times a throttled or failed round trip is
	// retried before giving up.
	MaxRetries int

	// RetryBase is the first backoff delay; it doubles per attempt.
	RetryBase time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxRetries:     6,
		RetryBase:      250 * time.Millisecond,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.RequestTimeout == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.RetryBase == 0 {
		c.RetryBase = def.RetryBase
	}
	return c
}

// Client talks JSON-RPC 2.0 to one ledger endpoint. Safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client for the endpoint in cfg.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{cfg: cfg, http: hc}, nil
}

// Endpoint returns the configured RPC URL.
func (c *Client) Endpoint() string { return c.cfg.Endpoint }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// call performs one JSON-RPC request, retrying transport errors and
// throttling responses with exponential backoff.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		raw, err := c.roundTrip(ctx, method, body)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			lastErr = &TransportError{Method: method, Err: fmt.Errorf("decode response: %w", err)}
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("%s: decode result: %w", method, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%s: retries exhausted: %w", method, lastErr)
}

func (c *Client) roundTrip(ctx context.Context, method string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	defer resp.Body.Close()

	if retryableStatus(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{Method: method, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: unexpected http status %d", method, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Err: err}
	}
	return raw, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type contextValue[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

// GetLatestBlockhash fetches a recent blockhash at the given commitment.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (types.Hash, uint64, error) {
	var result contextValue[struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	}]
	params := []any{map[string]string{"commitment": commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return types.Hash{}, 0, err
	}
	h, err := types.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return types.Hash{}, 0, fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return h, result.Value.LastValidBlockHeight, nil
}

// SendTransaction submits a base64-serialized signed transaction and
// returns its signature.
func (c *Client) SendTransaction(ctx context.Context, txBase64 string, preflightCommitment string) (types.Signature, error) {
	params := []any{txBase64, map[string]any{
		"encoding":            "base64",
		"preflightCommitment": preflightCommitment,
	}}
	var sigStr string
	if err := c.call(ctx, "sendTransaction", params, &sigStr); err != nil {
		return types.Signature{}, err
	}
	sig, err := types.SignatureFromBase58(sigStr)
	if err != nil {
		return types.Signature{}, fmt.Errorf("sendTransaction: %w", err)
	}
	return sig, nil
}

// SignatureStatus is one entry of a getSignatureStatuses response.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus string          `json:"confirmationStatus"`
}

// Failed reports whether the transaction executed and failed.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// GetSignatureStatuses looks up the statuses of the given signatures,
// searching transaction history for signatures beyond the recent cache.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...types.Signature) ([]*SignatureStatus, error) {
	strs := make([]string, len(sigs))
	for i, s := range sigs {
		strs[i] = s.String()
	}
	params := []any{strs, map[string]bool{"searchTransactionHistory": true}}
	var result contextValue[[]*SignatureStatus]
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// commitmentRank orders commitment levels for satisfaction checks.
func commitmentRank(c string) int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// commitmentSatisfied reports whether an observed confirmation status
// meets or exceeds the wanted commitment.
func commitmentSatisfied(observed, wanted string) bool {
	return commitmentRank(observed) >= commitmentRank(wanted)
}

// WaitForSignature polls until the signature reaches the wanted
// commitment or the timeout elapses. It returns the slot the
// transaction landed in. A transaction that executed and failed is
// returned as a *TransactionError.
func (c *Client) WaitForSignature(ctx context.Context, sig types.Signature, commitment string, timeout time.Duration) (uint64, error) {
	deadline := time.Now().Add(timeout)
	poll := 500 * time.Millisecond
	for {
		statuses, err := c.GetSignatureStatuses(ctx, sig)
		if err != nil {
			return 0, err
		}
		if len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if st.Failed() {
				return 0, &TransactionError{Signature: sig, Raw: st.Err}
			}
			if commitmentSatisfied(st.ConfirmationStatus, commitment) {
				return st.Slot, nil
			}
		}
		if time.Now().After(deadline) {
			return 0, &TransportError{Method: "waitForSignature",
				Err: fmt.Errorf("%w after %s: %s", ErrConfirmationTimeout, timeout, sig)}
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(poll):
		}
	}
}

// AccountInfo is the decoded payload of getAccountInfo.
type AccountInfo struct {
	Data     []byte
	Owner    types.Pubkey
	Lamports uint64
	Slot     uint64
}

// GetAccountInfo fetches an account's data at the given commitment.
// A nonzero minContextSlot pins the read to a slot at least that
// recent; when the queried node has not reached it yet, the
// minimum-context-slot error is retried with backoff.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey types.Pubkey, commitment string, minContextSlot uint64) (*AccountInfo, error) {
	opts := map[string]any{
		"encoding":   "base64",
		"commitment": commitment,
	}
	if minContextSlot > 0 {
		opts["minContextSlot"] = minContextSlot
	}
	params := []any{pubkey.String(), opts}

	type accountValue struct {
		Data     []string `json:"data"`
		Owner    string   `json:"owner"`
		Lamports uint64   `json:"lamports"`
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		var result contextValue[*accountValue]
		err := c.call(ctx, "getAccountInfo", params, &result)
		if err != nil {
			// A node that has not reached minContextSlot answers with a
			// dedicated code; wait for it to catch up.
			var rpcErr *RPCError
			if errors.As(err, &rpcErr) && rpcErr.Code == codeMinContextSlotNotReached {
				lastErr = err
				continue
			}
			return nil, err
		}
		if result.Value == nil {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
		}
		if len(result.Value.Data) < 1 {
			return nil, fmt.Errorf("getAccountInfo %s: missing data field", pubkey)
		}
		data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("getAccountInfo %s: decode data: %w", pubkey, err)
		}
		owner, err := types.PubkeyFromBase58(result.Value.Owner)
		if err != nil {
			return nil, fmt.Errorf("getAccountInfo %s: owner: %w", pubkey, err)
		}
		return &AccountInfo{
			Data:     data,
			Owner:    owner,
			Lamports: result.Value.Lamports,
			Slot:     result.Context.Slot,
		}, nil
	}
	return nil, fmt.Errorf("getAccountInfo: node did not reach slot %d: %w", minContextSlot, lastErr)
}

// GetMinimumBalanceForRentExemption returns the lamports required to
// keep an account of the given size alive.
func (c *Client) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	var lamports uint64
	if err := c.call(ctx, "getMinimumBalanceForRentExemption", []any{size}, &lamports); err != nil {
		return 0, err
	}
	return lamports, nil
}

// GetBalance returns an account's lamport balance.
func (c *Client) GetBalance(ctx context.Context, pubkey types.Pubkey, commitment string) (uint64, error) {
	params := []any{pubkey.String(), map[string]string{"commitment": commitment}}
	var result contextValue[uint64]
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}
