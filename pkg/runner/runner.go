// Package runner drives a VM run to completion across as many execute
// transactions as the chain allows per transaction.
//
// Each iteration submits one execute instruction with the current
// instruction budget, waits for the wanted commitment, then reads the
// VM account back at the confirmed slot to decide whether the guest
// halted. Budget-exceeded failures lower the budget and retry the same
// step without consuming the transaction ceiling; transient network
// failures retry with backoff; anything else aborts the run.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/instruction"
	"github.com/frostbite-labs/frostbite-go/pkg/rpcclient"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
	"github.com/frostbite-labs/frostbite-go/pkg/vmstate"
)

// Config controls one run.
type Config struct {
	// Client is the ledger RPC client.
	Client *rpcclient.Client

	// Authority signs execute instructions; it must be the VM authority.
	Authority *types.Keypair

	// Payer pays fees. Nil means the authority pays.
	Payer *types.Keypair

	// ProgramID is the Frostbite program.
	ProgramID types.Pubkey

	// VM is the derived VM account address for Seed.
	VM types.Pubkey

	// Seed is the VM seed.
	Seed uint64

	// Segments is the normalized segment layout, slot order.
	Segments []segments.Segment

	// Instructions is the starting per-transaction instruction budget.
	Instructions uint64

	// MinInstructions floors the adaptive budget.
	MinInstructions uint64

	// MaxInstructions caps the adaptive budget.
	MaxInstructions uint64

	// MaxTx is the confirmed-transaction ceiling for this invocation.
	MaxTx int

	// Resume continues a previous run instead of restarting the guest.
	Resume bool

	// Commitment is the confirmation level transactions wait for.
	Commitment string

	// ComputeUnitLimit is requested per transaction.
	ComputeUnitLimit uint32

	// ConfirmTimeout bounds one signature confirmation wait.
	ConfirmTimeout time.Duration

	// MaxAttempts is the transient-failure ceiling per step.
	MaxAttempts int

	// RetryBase is the first transient backoff delay; doubles per
	// attempt up to RetryMax.
	RetryBase time.Duration
	RetryMax  time.Duration

	// ControlOffset is the control block position in scratch memory.
	ControlOffset uint32

	// OutputMax caps the bytes read back from the output region.
	// Zero reads whatever the guest reported, bounded by the account.
	OutputMax uint32

	// UseMaxOutput reads OutputMax bytes from the output pointer when
	// the guest reports a zero output length.
	UseMaxOutput bool

	// MaxFloorRetries bounds consecutive budget-exceeded failures
	// while the budget already sits at MinInstructions.
	MaxFloorRetries int

	// Journal, when set, persists progress after every confirmed
	// transaction and seeds the budget on resume.
	Journal *Journal

	// OnTransaction, when set, is called after every confirmed
	// transaction.
	OnTransaction func(TxReport)
}

// DefaultConfig returns the default run parameters.
func DefaultConfig() Config {
	return Config{
		Instructions:     100_000,
		MinInstructions:  1_000,
		MaxInstructions:  10_000_000,
		MaxTx:            500,
		Commitment:       rpcclient.CommitmentConfirmed,
		ComputeUnitLimit: instruction.DefaultComputeUnitLimit,
		ConfirmTimeout:   60 * time.Second,
		MaxAttempts:      5,
		MaxFloorRetries:  3,
		RetryBase:        100 * time.Millisecond,
		RetryMax:         5 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Instructions == 0 {
		c.Instructions = def.Instructions
	}
	if c.MinInstructions == 0 {
		c.MinInstructions = def.MinInstructions
	}
	if c.MaxInstructions == 0 {
		c.MaxInstructions = def.MaxInstructions
	}
	if c.MaxTx == 0 {
		c.MaxTx = def.MaxTx
	}
	if c.Commitment == "" {
		c.Commitment = def.Commitment
	}
	if c.ComputeUnitLimit == 0 {
		c.ComputeUnitLimit = def.ComputeUnitLimit
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = def.ConfirmTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.MaxFloorRetries == 0 {
		c.MaxFloorRetries = def.MaxFloorRetries
	}
	if c.RetryBase == 0 {
		c.RetryBase = def.RetryBase
	}
	if c.RetryMax == 0 {
		c.RetryMax = def.RetryMax
	}
	if c.Payer == nil {
		c.Payer = c.Authority
	}
	return c
}

func (c Config) validate() error {
	if c.Client == nil {
		return ErrMissingClient
	}
	if c.Authority == nil {
		return ErrMissingAuthority
	}
	if len(c.Segments) == 0 {
		return ErrNoSegments
	}
	return nil
}

// TxReport describes one confirmed execute transaction.
type TxReport struct {
	Index     int
	Signature types.Signature
	Slot      uint64
	Budget    uint64
	Halted    bool
	Status    uint32
}

// Result is a completed run.
type Result struct {
	// Status is the guest's final control block status.
	Status uint32

	// Output is the guest output region, if any.
	Output []byte

	// Transactions is how many execute transactions confirmed.
	Transactions int

	// Signatures are the confirmed transaction signatures, in order.
	Signatures []types.Signature
}

// Run drives the VM until it halts, the transaction ceiling is
// reached, or an unrecoverable error occurs.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	budget := newBudgetController(cfg.Instructions, cfg.MinInstructions, cfg.MaxInstructions)
	if cfg.Resume && cfg.Journal != nil {
		rec, err := cfg.Journal.Load(cfg.Seed)
		if err != nil {
			return nil, err
		}
		if rec != nil && rec.Budget > 0 {
			budget = newBudgetController(rec.Budget, cfg.MinInstructions, cfg.MaxInstructions)
		}
	}

	var sigs []types.Signature
	confirmed := 0
	attempts := 0
	floorFailures := 0

	for confirmed < cfg.MaxTx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Only the very first transaction of a fresh run reinitializes
		// the interpreter.
		restart := !cfg.Resume && confirmed == 0

		sig, slot, err := submitExecute(ctx, cfg, budget.Budget(), restart)
		if err != nil {
			switch {
			case rpcclient.IsBudgetExceeded(err):
				// The step did not advance guest state; lower the budget
				// and retry without consuming the ceiling. A budget that
				// keeps failing at the floor will never pass, so those
				// retries are bounded separately.
				if budget.Budget() <= cfg.MinInstructions {
					floorFailures++
					if floorFailures > cfg.MaxFloorRetries {
						return nil, &BudgetFloorError{
							Floor:    cfg.MinInstructions,
							Failures: floorFailures,
							Last:     err,
						}
					}
				} else {
					floorFailures = 0
				}
				budget.OnBudgetExceeded()
				attempts = 0
				continue
			case rpcclient.IsRetryable(err):
				attempts++
				if attempts > cfg.MaxAttempts {
					return nil, &RetriesExhaustedError{Attempts: attempts, Last: err}
				}
				if err := sleepBackoff(ctx, cfg, attempts); err != nil {
					return nil, err
				}
				continue
			default:
				return nil, err
			}
		}
		attempts = 0
		floorFailures = 0
		confirmed++
		sigs = append(sigs, sig)

		state, account, err := readState(ctx, cfg, slot)
		if err != nil {
			return nil, err
		}
		budget.OnSuccess()

		if cfg.Journal != nil {
			rec := &RunRecord{
				Transactions:  confirmed,
				Budget:        budget.Budget(),
				LastSignature: sig.String(),
				Halted:        state.Halted,
			}
			if err := cfg.Journal.Save(cfg.Seed, rec); err != nil {
				return nil, err
			}
		}
		if cfg.OnTransaction != nil {
			cfg.OnTransaction(TxReport{
				Index:     confirmed,
				Signature: sig,
				Slot:      slot,
				Budget:    budget.Budget(),
				Halted:    state.Halted,
				Status:    state.Status,
			})
		}

		if state.Halted {
			output, err := vmstate.ReadOutput(account, state, cfg.OutputMax, cfg.UseMaxOutput)
			if err != nil {
				return nil, fmt.Errorf("vm %s: %w", cfg.VM, err)
			}
			return &Result{
				Status:       state.Status,
				Output:       output,
				Transactions: confirmed,
				Signatures:   sigs,
			}, nil
		}
	}
	return nil, &IncompleteRunError{Transactions: confirmed}
}

// submitExecute sends one execute transaction and waits for it to
// reach the configured commitment. It returns the landed slot.
func submitExecute(ctx context.Context, cfg Config, budget uint64, restart bool) (types.Signature, uint64, error) {
	blockhash, _, err := cfg.Client.GetLatestBlockhash(ctx, cfg.Commitment)
	if err != nil {
		return types.Signature{}, 0, err
	}

	exec := instruction.Execute{
		ProgramID: cfg.ProgramID,
		Authority: cfg.Authority.Pubkey(),
		VM:        cfg.VM,
		Seed:      cfg.Seed,
		Budget:    budget,
		Restart:   restart,
		Segments:  cfg.Segments,
	}
	txn, err := tx.NewTransaction([]tx.Instruction{
		instruction.SetComputeUnitLimit(cfg.ComputeUnitLimit),
		exec.Build(),
	}, cfg.Payer.Pubkey(), blockhash)
	if err != nil {
		return types.Signature{}, 0, err
	}
	if err := txn.Sign(cfg.Payer, cfg.Authority); err != nil {
		return types.Signature{}, 0, err
	}
	encoded, err := txn.Base64()
	if err != nil {
		return types.Signature{}, 0, err
	}

	sig, err := cfg.Client.SendTransaction(ctx, encoded, cfg.Commitment)
	if err != nil {
		return types.Signature{}, 0, err
	}
	slot, err := cfg.Client.WaitForSignature(ctx, sig, cfg.Commitment, cfg.ConfirmTimeout)
	if err != nil {
		return types.Signature{}, 0, err
	}
	return sig, slot, nil
}

// readState fetches the VM account pinned to the confirmed slot and
// decodes its run state. The raw account bytes are returned alongside
// so a halted run can read its output without a second fetch.
func readState(ctx context.Context, cfg Config, slot uint64) (*vmstate.RunState, []byte, error) {
	info, err := cfg.Client.GetAccountInfo(ctx, cfg.VM, cfg.Commitment, slot)
	if err != nil {
		return nil, nil, err
	}
	state, err := vmstate.ReadRunState(info.Data, cfg.ControlOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("vm %s: %w", cfg.VM, err)
	}
	return state, info.Data, nil
}

func sleepBackoff(ctx context.Context, cfg Config, attempt int) error {
	delay := cfg.RetryBase << (attempt - 1)
	if delay > cfg.RetryMax {
		delay = cfg.RetryMax
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
