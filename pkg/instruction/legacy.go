package instruction

import (
	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
)

// The legacy opcode family operates on explicit accounts instead of
// seed-derived ones. It predates segment mapping and is kept for
// resetting or draining accounts created by older tooling.

// LegacyInitialize initializes an explicit VM account.
type LegacyInitialize struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
}

func (r LegacyInitialize) Build() tx.Instruction {
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: []byte{OpInitialize},
	}
}

// LegacyLoadProgram loads program bytes into an explicit VM account.
type LegacyLoadProgram struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Entry     uint32
	Payload   []byte
}

func (r LegacyLoadProgram) Build() tx.Instruction {
	e := newEncoder(OpLoadProgram, 5+len(r.Payload))
	e.u32(r.Entry)
	e.bytes(r.Payload)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: e.buf,
	}
}

// LegacyExecute steps an explicit VM account by Budget instructions.
type LegacyExecute struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Budget    uint64
}

func (r LegacyExecute) Build() tx.Instruction {
	e := newEncoder(OpExecute, 9)
	e.u64(r.Budget)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: e.buf,
	}
}

// LegacyReset clears the run state of an explicit VM account.
type LegacyReset struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
}

func (r LegacyReset) Build() tx.Instruction {
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: []byte{OpReset},
	}
}

// LegacyWriteAccount writes a payload at an offset of an explicit account.
type LegacyWriteAccount struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	Target    types.Pubkey
	Offset    uint32
	Payload   []byte
}

func (r LegacyWriteAccount) Build() tx.Instruction {
	e := newEncoder(OpWriteAccount, 5+len(r.Payload))
	e.u32(r.Offset)
	e.bytes(r.Payload)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.Target, Writable: true},
		},
		Data: e.buf,
	}
}

// LegacyCopyVMOutput copies the VM output region into a destination
// account owned by the program.
type LegacyCopyVMOutput struct {
	ProgramID   types.Pubkey
	Authority   types.Pubkey
	VM          types.Pubkey
	Destination types.Pubkey
}

func (r LegacyCopyVMOutput) Build() tx.Instruction {
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM},
			{Pubkey: r.Destination, Writable: true},
		},
		Data: []byte{OpCopyVMOutput},
	}
}
