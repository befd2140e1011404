// Well-known program addresses used when composing transactions.
package types

import "fmt"

var (
	// SystemProgramAddr is the System Program address.
	SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

	// ComputeBudgetProgramAddr is the Compute Budget Program address.
	ComputeBudgetProgramAddr = MustPubkeyFromBase58("ComputeBudget111111111111111111111111111111")

	// DefaultProgramAddr is the Frostbite program deployed on devnet.
	DefaultProgramAddr = MustPubkeyFromBase58("FRsToriMLgDc1Ud53ngzHUZvCRoazCaGeGUuzkwoha7m")
)

// MustPubkeyFromBase58 parses a base58 pubkey or panics.
// Only use for compile-time constants.
func MustPubkeyFromBase58(s string) Pubkey {
	p, err := PubkeyFromBase58(s)
	if err != nil {
		panic(fmt.Sprintf("invalid pubkey constant %q: %v", s, err))
	}
	return p
}
