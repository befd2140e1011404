// Package instruction encodes Frostbite program instructions.
//
// Every operation has a typed request struct with a Build method that
// returns the wire instruction: opcode byte, little-endian fields,
// then any payload, plus the account metas in the order the program
// expects. The seeded (v3) family addresses accounts derived from a
// u64 VM seed; the legacy family operates on explicit accounts.
package instruction

import (
	"encoding/binary"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
)

// Legacy opcodes.
const (
	OpInitialize   uint8 = 0
	OpLoadProgram  uint8 = 1
	OpExecute      uint8 = 2
	OpReset        uint8 = 3
	OpWriteAccount uint8 = 5
	OpCopyVMOutput uint8 = 6
)

// Seeded (v3) opcodes.
const (
	OpInitVMSeeded       uint8 = 40
	OpInitSegmentSeeded  uint8 = 41
	OpLoadProgramV3      uint8 = 42
	OpExecuteV3          uint8 = 43
	OpResetV3            uint8 = 44
	OpWriteSegmentSeeded uint8 = 45
	OpClearSegmentSeeded uint8 = 46
	OpCloseSegmentSeeded uint8 = 47
	OpCloseVMSeeded      uint8 = 48
	OpExecuteRestartV3   uint8 = 49
)

// DefaultComputeUnitLimit is requested for every execute transaction.
const DefaultComputeUnitLimit uint32 = 1_400_000

type encoder struct {
	buf []byte
}

func newEncoder(op uint8, capacity int) *encoder {
	e := &encoder{buf: make([]byte, 0, capacity)}
	e.buf = append(e.buf, op)
	return e
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }
func (e *encoder) bytes(p []byte) {
	e.buf = append(e.buf, p...)
}

// InitVM creates the VM state account for a seed.
// Accounts: authority (ro, signer), VM (writable).
type InitVM struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Seed      uint64
}

func (r InitVM) Build() tx.Instruction {
	e := newEncoder(OpInitVMSeeded, 9)
	e.u64(r.Seed)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: e.buf,
	}
}

// InitSegment creates one segment account and registers its mapping.
// Accounts: authority (ro, signer), VM (ro), segment (writable).
type InitSegment struct {
	ProgramID  types.Pubkey
	Authority  types.Pubkey
	VM         types.Pubkey
	Segment    types.Pubkey
	Seed       uint64
	Kind       uint8
	Slot       uint8
	PayloadLen uint32
}

func (r InitSegment) Build() tx.Instruction {
	e := newEncoder(OpInitSegmentSeeded, 15)
	e.u64(r.Seed)
	e.u8(r.Kind)
	e.u8(r.Slot)
	e.u32(r.PayloadLen)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM},
			{Pubkey: r.Segment, Writable: true},
		},
		Data: e.buf,
	}
}

// LoadProgram writes guest program bytes and the entry PC into the VM.
// Accounts: authority (ro, signer), VM (writable).
type LoadProgram struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Seed      uint64
	Entry     uint32
	Payload   []byte
}

func (r LoadProgram) Build() tx.Instruction {
	e := newEncoder(OpLoadProgramV3, 13+len(r.Payload))
	e.u64(r.Seed)
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

// Execute runs up to Budget guest instructions. With Restart set the
// interpreter state is reinitialized before stepping (the first
// transaction of a fresh run); otherwise execution continues from the
// saved program counter.
//
// Accounts: authority (ro, signer), VM (writable), then the segments in
// slot order with their declared access modes.
type Execute struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Seed      uint64
	Budget    uint64
	Restart   bool
	Segments  []segments.Segment
}

func (r Execute) Build() tx.Instruction {
	op := OpExecuteV3
	if r.Restart {
		op = OpExecuteRestartV3
	}
	e := newEncoder(op, 19+len(r.Segments))
	e.u64(r.Seed)
	e.u64(r.Budget)
	e.u8(0) // flags, reserved
	e.u8(uint8(len(r.Segments)))
	for _, seg := range r.Segments {
		e.u8(seg.Kind)
	}

	metas := make([]tx.AccountMeta, 0, 2+len(r.Segments))
	metas = append(metas,
		tx.AccountMeta{Pubkey: r.Authority, Signer: true},
		tx.AccountMeta{Pubkey: r.VM, Writable: true},
	)
	for _, seg := range r.Segments {
		metas = append(metas, tx.AccountMeta{Pubkey: seg.Address, Writable: seg.Writable})
	}
	return tx.Instruction{ProgramID: r.ProgramID, Accounts: metas, Data: e.buf}
}

// Reset clears the VM run state without touching segments.
// Accounts: authority (ro, signer), VM (writable).
type Reset struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Seed      uint64
}

func (r Reset) Build() tx.Instruction {
	e := newEncoder(OpResetV3, 9)
	e.u64(r.Seed)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
		},
		Data: e.buf,
	}
}

// WriteSegment writes a payload chunk into a segment at an offset.
// Accounts: authority (ro, signer), VM (ro), segment (writable).
type WriteSegment struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Segment   types.Pubkey
	Seed      uint64
	Kind      uint8
	Slot      uint8
	Offset    uint32
	Payload   []byte
}

func (r WriteSegment) Build() tx.Instruction {
	e := newEncoder(OpWriteSegmentSeeded, 15+len(r.Payload))
	e.u64(r.Seed)
	e.u8(r.Kind)
	e.u8(r.Slot)
	e.u32(r.Offset)
	e.bytes(r.Payload)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM},
			{Pubkey: r.Segment, Writable: true},
		},
		Data: e.buf,
	}
}

// ClearSegment zero-fills a byte range of a segment.
// Accounts: authority (ro, signer), VM (ro), segment (writable).
type ClearSegment struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Segment   types.Pubkey
	Seed      uint64
	Kind      uint8
	Slot      uint8
	Offset    uint32
	Length    uint32
}

func (r ClearSegment) Build() tx.Instruction {
	e := newEncoder(OpClearSegmentSeeded, 19)
	e.u64(r.Seed)
	e.u8(r.Kind)
	e.u8(r.Slot)
	e.u32(r.Offset)
	e.u32(r.Length)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM},
			{Pubkey: r.Segment, Writable: true},
		},
		Data: e.buf,
	}
}

// CloseSegment drains a segment's lamports to the recipient and removes
// its mapping. Accounts: authority (ro, signer), VM (ro), segment
// (writable), recipient (writable).
type CloseSegment struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Segment   types.Pubkey
	Recipient types.Pubkey
	Seed      uint64
	Kind      uint8
	Slot      uint8
}

func (r CloseSegment) Build() tx.Instruction {
	e := newEncoder(OpCloseSegmentSeeded, 11)
	e.u64(r.Seed)
	e.u8(r.Kind)
	e.u8(r.Slot)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM},
			{Pubkey: r.Segment, Writable: true},
			{Pubkey: r.Recipient, Writable: true},
		},
		Data: e.buf,
	}
}

// CloseVM drains the VM account to the recipient. Segments must be
// closed first. Accounts: authority (ro, signer), VM (writable),
// recipient (writable).
type CloseVM struct {
	ProgramID types.Pubkey
	Authority types.Pubkey
	VM        types.Pubkey
	Recipient types.Pubkey
	Seed      uint64
}

func (r CloseVM) Build() tx.Instruction {
	e := newEncoder(OpCloseVMSeeded, 9)
	e.u64(r.Seed)
	return tx.Instruction{
		ProgramID: r.ProgramID,
		Accounts: []tx.AccountMeta{
			{Pubkey: r.Authority, Signer: true},
			{Pubkey: r.VM, Writable: true},
			{Pubkey: r.Recipient, Writable: true},
		},
		Data: e.buf,
	}
}

// SetComputeUnitLimit builds the compute-budget instruction requesting
// a per-transaction compute unit ceiling.
func SetComputeUnitLimit(limit uint32) tx.Instruction {
	data := make([]byte, 0, 5)
	data = append(data, 0x02)
	data = binary.LittleEndian.AppendUint32(data, limit)
	return tx.Instruction{
		ProgramID: types.ComputeBudgetProgramAddr,
		Data:      data,
	}
}
