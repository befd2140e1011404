package instruction

import (
	"encoding/binary"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
)

// systemCreateAccountWithSeed is the System Program instruction index.
const systemCreateAccountWithSeed uint32 = 3

// CreateAccountWithSeed builds the System Program instruction that
// allocates a seed-derived account. The address must equal
// derive.CreateWithSeed(Base, Seed, Owner) or the runtime rejects it.
//
// Accounts: funder (writable, signer), new account (writable), plus the
// base key as a signer when it differs from the funder.
type CreateAccountWithSeed struct {
	Funder   types.Pubkey
	Address  types.Pubkey
	Base     types.Pubkey
	Seed     string
	Lamports uint64
	Space    uint64
	Owner    types.Pubkey
}

func (r CreateAccountWithSeed) Build() tx.Instruction {
	// Bincode layout: u32 index, base, string seed (u64 length prefix),
	// u64 lamports, u64 space, owner.
	data := make([]byte, 0, 4+32+8+len(r.Seed)+8+8+32)
	data = binary.LittleEndian.AppendUint32(data, systemCreateAccountWithSeed)
	data = append(data, r.Base[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(len(r.Seed)))
	data = append(data, r.Seed...)
	data = binary.LittleEndian.AppendUint64(data, r.Lamports)
	data = binary.LittleEndian.AppendUint64(data, r.Space)
	data = append(data, r.Owner[:]...)

	metas := []tx.AccountMeta{
		{Pubkey: r.Funder, Signer: true, Writable: true},
		{Pubkey: r.Address, Writable: true},
	}
	if r.Base != r.Funder {
		metas = append(metas, tx.AccountMeta{Pubkey: r.Base, Signer: true})
	}
	return tx.Instruction{
		ProgramID: types.SystemProgramAddr,
		Accounts:  metas,
		Data:      data,
	}
}
