package rpcclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/frostbite-labs/frostbite-go/internal/types"
)

const (
	// codeMinContextSlotNotReached is returned by a node that has not
	// yet processed the slot pinned by minContextSlot.
	codeMinContextSlotNotReached = -32016

	// codePreflightFailure is returned when transaction simulation
	// fails before submission. Usually transient (stale blockhash,
	// node catching up), unless the program itself errored.
	codePreflightFailure = -32002
)

var (
	// ErrNoEndpoint is returned by New when no RPC URL is configured.
	ErrNoEndpoint = errors.New("rpc endpoint not configured")

	// ErrAccountNotFound is returned when getAccountInfo yields null.
	ErrAccountNotFound = errors.New("account not found")

	// ErrConfirmationTimeout is returned when a signature did not reach
	// the wanted commitment before the deadline.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
)

// RPCError is a JSON-RPC error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransportError wraps an HTTP-level failure: connection errors,
// timeouts and throttling or gateway statuses. These are retryable.
type TransportError struct {
	Method     string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport: http %d: %v", e.Method, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransactionError reports a transaction that executed on chain and
// failed. Raw carries the node's error value verbatim.
type TransactionError struct {
	Signature types.Signature
	Raw       json.RawMessage
	Logs      []string
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed: %s", e.Signature, string(e.Raw))
}

// IsRetryable reports whether an error is transient: transport
// failures, throttling, confirmation timeouts, stale-blockhash,
// node-behind and preflight simulation responses. Retrying the same
// step with a fresh blockhash is safe for these. A preflight failure
// that carries a program error is deterministic and stays fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var terr *TransportError
	if errors.As(err, &terr) {
		return true
	}
	if errors.Is(err, ErrConfirmationTimeout) {
		return true
	}
	var rerr *RPCError
	if errors.As(err, &rerr) {
		if rerr.Code == codeMinContextSlotNotReached {
			return true
		}
		if rerr.Code == codePreflightFailure {
			return !containsProgramErrorMarker(rerr.Message) &&
				!containsProgramErrorMarker(string(rerr.Data))
		}
		msg := strings.ToLower(rerr.Message)
		return strings.Contains(msg, "blockhash not found") ||
			strings.Contains(msg, "node is behind") ||
			strings.Contains(msg, "block height exceeded")
	}
	return false
}

// programErrorMarkers flag a preflight simulation that reached the
// program and failed inside it. Resubmitting such a transaction
// unchanged reproduces the failure.
var programErrorMarkers = []string{
	"instructionerror",
	"instruction error",
	"program failed",
	"custom program error",
}

func containsProgramErrorMarker(s string) bool {
	low := strings.ToLower(s)
	for _, marker := range programErrorMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}

// budgetExceededMarkers are the substrings the runtime uses when a
// transaction burned through its compute allowance.
var budgetExceededMarkers = []string{
	"computebudgetexceeded",
	"exceeded cus",
	"compute budget exceeded",
	"max instruction count",
}

// IsBudgetExceeded reports whether a failed transaction ran out of
// compute budget. The caller lowers the per-transaction instruction
// budget and retries the same step.
func IsBudgetExceeded(err error) bool {
	if err == nil {
		return false
	}
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		if containsBudgetMarker(string(txErr.Raw)) {
			return true
		}
		for _, line := range txErr.Logs {
			if containsBudgetMarker(line) {
				return true
			}
		}
		return false
	}
	var rerr *RPCError
	if errors.As(err, &rerr) {
		return containsBudgetMarker(rerr.Message) || containsBudgetMarker(string(rerr.Data))
	}
	return false
}

func containsBudgetMarker(s string) bool {
	low := strings.ToLower(s)
	for _, marker := range budgetExceededMarkers {
		if strings.Contains(low, marker) {
			return true
		}
	}
	return false
}
