package accountsfile

import "errors"

var (
	// ErrMissingSeed is returned when the descriptor has no vm.seed.
	ErrMissingSeed = errors.New("accounts file: vm.seed is required")

	// ErrNegativeSeed is returned for a negative TOML integer seed.
	ErrNegativeSeed = errors.New("accounts file: vm.seed cannot be negative")

	// ErrBadSeedType is returned when vm.seed is neither an integer nor
	// a string.
	ErrBadSeedType = errors.New("accounts file: vm.seed must be an integer or string")

	// ErrMissingAuthorityKeypair is returned when an operation needs the
	// authority keypair and vm.authority_keypair is unset.
	ErrMissingAuthorityKeypair = errors.New("accounts file: vm.authority_keypair is required")

	// ErrAuthorityMismatch is returned when the authority keypair does
	// not match the pinned vm.authority pubkey.
	ErrAuthorityMismatch = errors.New("accounts file: authority keypair mismatch")

	// ErrVMPubkeyMismatch is returned when the pinned vm.pubkey differs
	// from the derived VM address.
	ErrVMPubkeyMismatch = errors.New("accounts file: vm pubkey mismatch")
)
