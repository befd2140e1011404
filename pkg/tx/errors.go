package tx

import "errors"

var (
	// ErrNoInstructions is returned when building an empty transaction.
	ErrNoInstructions = errors.New("transaction has no instructions")

	// ErrNoPayer is returned when the fee payer is the zero key.
	ErrNoPayer = errors.New("transaction has no fee payer")

	// ErrTooManyAccounts is returned when the account table exceeds
	// the legacy format's one-byte index space.
	ErrTooManyAccounts = errors.New("too many accounts for legacy transaction")

	// ErrMissingSigner is returned by Sign when a required signer's
	// keypair was not supplied.
	ErrMissingSigner = errors.New("missing keypair for required signer")

	// ErrUnsigned is returned by Serialize when a signature slot is empty.
	ErrUnsigned = errors.New("transaction is not fully signed")
)
