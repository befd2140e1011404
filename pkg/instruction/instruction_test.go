package instruction

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/derive"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
)

func fillPubkey(fill byte) types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = fill
	}
	return p
}

var (
	program   = fillPubkey(0xEE)
	authority = fillPubkey(0x01)
	vm        = fillPubkey(0x02)
)

// decodeExecute is a test-only decoder for the execute wire layout.
func decodeExecute(t *testing.T, data []byte) (op uint8, seed, budget uint64, flags, n uint8, kinds []uint8) {
	t.Helper()
	if len(data) < 19 {
		t.Fatalf("execute data too short: %d bytes", len(data))
	}
	op = data[0]
	seed = binary.LittleEndian.Uint64(data[1:9])
	budget = binary.LittleEndian.Uint64(data[9:17])
	flags = data[17]
	n = data[18]
	if len(data) != 19+int(n) {
		t.Fatalf("execute data length = %d, want %d", len(data), 19+int(n))
	}
	kinds = data[19:]
	return
}

func TestExecuteRestartRoundTrip(t *testing.T) {
	segs := []segments.Segment{
		{Kind: derive.KindWeights, Slot: 1, Address: fillPubkey(0x10)},
		{Kind: derive.KindRAM, Slot: 2, Writable: true, Address: fillPubkey(0x20)},
	}
	ins := Execute{
		ProgramID: program,
		Authority: authority,
		VM:        vm,
		Seed:      7,
		Budget:    50000,
		Restart:   true,
		Segments:  segs,
	}.Build()

	if ins.ProgramID != program {
		t.Errorf("program id = %s, want %s", ins.ProgramID, program)
	}
	op, seed, budget, flags, n, kinds := decodeExecute(t, ins.Data)
	if op != OpExecuteRestartV3 {
		t.Errorf("op = %d, want %d", op, OpExecuteRestartV3)
	}
	if seed != 7 || budget != 50000 {
		t.Errorf("seed/budget = %d/%d, want 7/50000", seed, budget)
	}
	if flags != 0 {
		t.Errorf("flags = %d, want 0", flags)
	}
	if n != 2 || !bytes.Equal(kinds, []byte{derive.KindWeights, derive.KindRAM}) {
		t.Errorf("segment kinds = %v, want [1 2]", kinds)
	}
	if len(ins.Data) != 1+8+8+1+1+2 {
		t.Errorf("data length = %d, want 21", len(ins.Data))
	}

	metas := ins.Accounts
	if len(metas) != 4 {
		t.Fatalf("got %d account metas, want 4", len(metas))
	}
	if metas[0].Pubkey != authority || !metas[0].Signer || metas[0].Writable {
		t.Errorf("meta 0 = %+v, want authority ro+signer", metas[0])
	}
	if metas[1].Pubkey != vm || metas[1].Signer || !metas[1].Writable {
		t.Errorf("meta 1 = %+v, want vm writable", metas[1])
	}
	if metas[2].Writable {
		t.Error("weights segment must be read-only")
	}
	if !metas[3].Writable {
		t.Error("ram segment must be writable")
	}
}

func TestExecuteContinueOpcode(t *testing.T) {
	ins := Execute{
		ProgramID: program,
		Authority: authority,
		VM:        vm,
		Seed:      1,
		Budget:    100,
	}.Build()
	if ins.Data[0] != OpExecuteV3 {
		t.Errorf("op = %d, want %d", ins.Data[0], OpExecuteV3)
	}
	if len(ins.Data) != 19 {
		t.Errorf("data length = %d, want 19 for zero segments", len(ins.Data))
	}
}

func TestInitVM(t *testing.T) {
	ins := InitVM{ProgramID: program, Authority: authority, VM: vm, Seed: 0xDEADBEEF}.Build()
	if ins.Data[0] != OpInitVMSeeded || len(ins.Data) != 9 {
		t.Fatalf("data = %x", ins.Data)
	}
	if binary.LittleEndian.Uint64(ins.Data[1:]) != 0xDEADBEEF {
		t.Error("seed bytes wrong")
	}
	if len(ins.Accounts) != 2 || !ins.Accounts[0].Signer || !ins.Accounts[1].Writable {
		t.Errorf("accounts = %+v", ins.Accounts)
	}
}

func TestInitSegment(t *testing.T) {
	seg := fillPubkey(0x30)
	ins := InitSegment{
		ProgramID: program, Authority: authority, VM: vm, Segment: seg,
		Seed: 9, Kind: derive.KindRAM, Slot: 2, PayloadLen: 65536,
	}.Build()
	want := []byte{OpInitSegmentSeeded, 9, 0, 0, 0, 0, 0, 0, 0, 2, 2}
	want = binary.LittleEndian.AppendUint32(want, 65536)
	if !bytes.Equal(ins.Data, want) {
		t.Errorf("data = %x, want %x", ins.Data, want)
	}
	if len(ins.Accounts) != 3 {
		t.Fatalf("got %d accounts, want 3", len(ins.Accounts))
	}
	if ins.Accounts[1].Writable {
		t.Error("vm must be read-only for init-segment")
	}
	if !ins.Accounts[2].Writable || ins.Accounts[2].Pubkey != seg {
		t.Error("segment must be writable")
	}
}

func TestWriteSegment(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	ins := WriteSegment{
		ProgramID: program, Authority: authority, VM: vm, Segment: fillPubkey(0x30),
		Seed: 5, Kind: derive.KindWeights, Slot: 1, Offset: 4096, Payload: payload,
	}.Build()
	if ins.Data[0] != OpWriteSegmentSeeded {
		t.Fatalf("op = %d", ins.Data[0])
	}
	if got := binary.LittleEndian.Uint32(ins.Data[11:15]); got != 4096 {
		t.Errorf("offset = %d, want 4096", got)
	}
	if !bytes.Equal(ins.Data[15:], payload) {
		t.Error("payload bytes wrong")
	}
}

func TestClearSegment(t *testing.T) {
	ins := ClearSegment{
		ProgramID: program, Authority: authority, VM: vm, Segment: fillPubkey(0x30),
		Seed: 5, Kind: derive.KindRAM, Slot: 2, Offset: 0, Length: 65536,
	}.Build()
	if ins.Data[0] != OpClearSegmentSeeded || len(ins.Data) != 19 {
		t.Fatalf("data = %x", ins.Data)
	}
	if got := binary.LittleEndian.Uint32(ins.Data[15:19]); got != 65536 {
		t.Errorf("length = %d, want 65536", got)
	}
}

func TestCloseInstructions(t *testing.T) {
	recipient := fillPubkey(0x40)
	seg := CloseSegment{
		ProgramID: program, Authority: authority, VM: vm,
		Segment: fillPubkey(0x30), Recipient: recipient,
		Seed: 3, Kind: derive.KindRAM, Slot: 2,
	}.Build()
	if seg.Data[0] != OpCloseSegmentSeeded || len(seg.Data) != 11 {
		t.Fatalf("close-segment data = %x", seg.Data)
	}
	if len(seg.Accounts) != 4 || !seg.Accounts[3].Writable || seg.Accounts[3].Pubkey != recipient {
		t.Errorf("close-segment accounts = %+v", seg.Accounts)
	}

	vmClose := CloseVM{
		ProgramID: program, Authority: authority, VM: vm, Recipient: recipient, Seed: 3,
	}.Build()
	if vmClose.Data[0] != OpCloseVMSeeded || len(vmClose.Data) != 9 {
		t.Fatalf("close-vm data = %x", vmClose.Data)
	}
	if len(vmClose.Accounts) != 3 || !vmClose.Accounts[1].Writable || !vmClose.Accounts[2].Writable {
		t.Errorf("close-vm accounts = %+v", vmClose.Accounts)
	}
}

func TestLoadProgram(t *testing.T) {
	payload := bytes.Repeat([]byte{0xCC}, 16)
	ins := LoadProgram{
		ProgramID: program, Authority: authority, VM: vm,
		Seed: 11, Entry: 0x100, Payload: payload,
	}.Build()
	if ins.Data[0] != OpLoadProgramV3 {
		t.Fatalf("op = %d", ins.Data[0])
	}
	if got := binary.LittleEndian.Uint32(ins.Data[9:13]); got != 0x100 {
		t.Errorf("entry = %#x, want 0x100", got)
	}
	if !bytes.Equal(ins.Data[13:], payload) {
		t.Error("payload bytes wrong")
	}
}

func TestSetComputeUnitLimit(t *testing.T) {
	ins := SetComputeUnitLimit(DefaultComputeUnitLimit)
	if ins.ProgramID != types.ComputeBudgetProgramAddr {
		t.Errorf("program = %s, want compute budget", ins.ProgramID)
	}
	want := append([]byte{0x02}, binary.LittleEndian.AppendUint32(nil, 1_400_000)...)
	if !bytes.Equal(ins.Data, want) {
		t.Errorf("data = %x, want %x", ins.Data, want)
	}
	if len(ins.Accounts) != 0 {
		t.Error("compute budget instruction takes no accounts")
	}
}

func TestCreateAccountWithSeed(t *testing.T) {
	funder := fillPubkey(0x01)
	addr := fillPubkey(0x50)
	owner := fillPubkey(0x60)
	seed := derive.VMSeedString(7)

	ins := CreateAccountWithSeed{
		Funder: funder, Address: addr, Base: funder,
		Seed: seed, Lamports: 12345, Space: 262696, Owner: owner,
	}.Build()

	if ins.ProgramID != types.SystemProgramAddr {
		t.Errorf("program = %s, want system program", ins.ProgramID)
	}
	if got := binary.LittleEndian.Uint32(ins.Data[:4]); got != systemCreateAccountWithSeed {
		t.Errorf("index = %d, want 3", got)
	}
	if !bytes.Equal(ins.Data[4:36], funder[:]) {
		t.Error("base bytes wrong")
	}
	seedLen := binary.LittleEndian.Uint64(ins.Data[36:44])
	if int(seedLen) != len(seed) {
		t.Errorf("seed length = %d, want %d", seedLen, len(seed))
	}
	off := 44 + len(seed)
	if string(ins.Data[44:off]) != seed {
		t.Error("seed string bytes wrong")
	}
	if got := binary.LittleEndian.Uint64(ins.Data[off : off+8]); got != 12345 {
		t.Errorf("lamports = %d", got)
	}
	if got := binary.LittleEndian.Uint64(ins.Data[off+8 : off+16]); got != 262696 {
		t.Errorf("space = %d", got)
	}
	if !bytes.Equal(ins.Data[off+16:], owner[:]) {
		t.Error("owner bytes wrong")
	}
	// Same base as funder: only two metas.
	if len(ins.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(ins.Accounts))
	}

	other := fillPubkey(0x70)
	ins = CreateAccountWithSeed{
		Funder: funder, Address: addr, Base: other,
		Seed: seed, Lamports: 1, Space: 1, Owner: owner,
	}.Build()
	if len(ins.Accounts) != 3 || !ins.Accounts[2].Signer || ins.Accounts[2].Pubkey != other {
		t.Errorf("distinct base must be appended as signer: %+v", ins.Accounts)
	}
}
