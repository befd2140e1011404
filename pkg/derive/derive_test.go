package derive

import (
	"errors"
	"strings"
	"testing"

	"github.com/frostbite-labs/frostbite-go/internal/types"
)

func mustPubkey(t *testing.T, s string) types.Pubkey {
	t.Helper()
	p, err := types.PubkeyFromBase58(s)
	if err != nil {
		t.Fatalf("parse pubkey %q: %v", s, err)
	}
	return p
}

func TestVMSeedString(t *testing.T) {
	tests := []struct {
		seed uint64
		want string
	}{
		{0, "fbv1:vm:0000000000000000"},
		{7, "fbv1:vm:0000000000000007"},
		{0x0123456789ABCDEF, "fbv1:vm:0123456789abcdef"},
		{1234567890123456789, "fbv1:vm:112210f47de98115"},
		{^uint64(0), "fbv1:vm:ffffffffffffffff"},
	}
	for _, tt := range tests {
		if got := VMSeedString(tt.seed); got != tt.want {
			t.Errorf("VMSeedString(%d) = %q, want %q", tt.seed, got, tt.want)
		}
	}
}

func TestSegmentSeedString(t *testing.T) {
	got := SegmentSeedString(0x0102030405060708, 0xAA, 5)
	want := "fbv1:sg:0102030405060708:aa05"
	if got != want {
		t.Errorf("SegmentSeedString = %q, want %q", got, want)
	}
	if len(got) > MaxSeedLen {
		t.Errorf("segment seed string %q exceeds %d bytes", got, MaxSeedLen)
	}
}

// Golden derivation vectors. The authority key is the byte sequence
// 1..32; the program id is the devnet deployment.
func TestDeriveGoldenVectors(t *testing.T) {
	authority := mustPubkey(t, "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
	program := mustPubkey(t, "FRsToriMLgDc1Ud53ngzHUZvCRoazCaGeGUuzkwoha7m")
	const seed = uint64(1234567890123456789)

	vm, err := VMAddress(authority, seed, program)
	if err != nil {
		t.Fatalf("VMAddress: %v", err)
	}
	if got, want := vm.String(), "5PW8fT1rmv6H1kVkTazXCTdJuUQHwZ4g24tvnFwcTv5h"; got != want {
		t.Errorf("VM address = %s, want %s", got, want)
	}

	weights, err := SegmentAddress(authority, seed, KindWeights, 1, program)
	if err != nil {
		t.Fatalf("SegmentAddress(weights,1): %v", err)
	}
	if got, want := weights.String(), "56doSKMnCYq2AGYzh7w9WYHUvviBdH9JPEAeaqYyUeYt"; got != want {
		t.Errorf("weights@1 address = %s, want %s", got, want)
	}

	ram, err := SegmentAddress(authority, seed, KindRAM, 2, program)
	if err != nil {
		t.Fatalf("SegmentAddress(ram,2): %v", err)
	}
	if got, want := ram.String(), "CThLkCg69vdMry2b6KkkycwgKjq8dbR5pseqf1KRYGR9"; got != want {
		t.Errorf("ram@2 address = %s, want %s", got, want)
	}
}

func TestDeriveDeterministicAndDistinct(t *testing.T) {
	authority := mustPubkey(t, "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
	program := types.DefaultProgramAddr
	const seed = uint64(42)

	seen := make(map[types.Pubkey]string)
	vm, err := VMAddress(authority, seed, program)
	if err != nil {
		t.Fatal(err)
	}
	seen[vm] = "vm"

	for _, kind := range []uint8{KindWeights, KindRAM} {
		for slot := uint8(MinSlot); slot <= MaxSlot; slot++ {
			a, err := SegmentAddress(authority, seed, kind, slot, program)
			if err != nil {
				t.Fatalf("SegmentAddress(%d,%d): %v", kind, slot, err)
			}
			b, err := SegmentAddress(authority, seed, kind, slot, program)
			if err != nil {
				t.Fatal(err)
			}
			if a != b {
				t.Fatalf("derivation not deterministic for kind=%d slot=%d", kind, slot)
			}
			if prev, dup := seen[a]; dup {
				t.Fatalf("address collision: kind=%d slot=%d collides with %s", kind, slot, prev)
			}
			seen[a] = KindName(kind)
		}
	}
}

func TestSegmentAddressValidation(t *testing.T) {
	authority := mustPubkey(t, "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
	program := types.DefaultProgramAddr

	if _, err := SegmentAddress(authority, 1, 3, 1, program); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("kind=3: got %v, want ErrUnsupportedKind", err)
	}
	if _, err := SegmentAddress(authority, 1, KindRAM, 0, program); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("slot=0: got %v, want ErrSlotOutOfRange", err)
	}
	if _, err := SegmentAddress(authority, 1, KindRAM, 16, program); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("slot=16: got %v, want ErrSlotOutOfRange", err)
	}
}

func TestCreateWithSeedRejectsLongSeed(t *testing.T) {
	authority := types.DefaultProgramAddr
	long := strings.Repeat("x", MaxSeedLen+1)
	if _, err := CreateWithSeed(authority, long, authority); !errors.Is(err, ErrSeedTooLong) {
		t.Errorf("got %v, want ErrSeedTooLong", err)
	}
	max := strings.Repeat("x", MaxSeedLen)
	if _, err := CreateWithSeed(authority, max, authority); err != nil {
		t.Errorf("32-byte seed should be accepted, got %v", err)
	}
}

func TestParseSeed(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"0", 0, false},
		{"1234567890123456789", 1234567890123456789, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"0x112210f47de98115", 1234567890123456789, false},
		{"0XFF", 255, false},
		{" 7 ", 7, false},
		{"", 0, true},
		{"18446744073709551616", 0, true},
		{"-1", 0, true},
		{"0x", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSeed(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSeed(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSeed(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestKindCode(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want uint8
	}{
		{"weights", KindWeights},
		{"WEIGHTS", KindWeights},
		{"ram", KindRAM},
		{" Ram ", KindRAM},
		{"1", KindWeights},
		{"2", KindRAM},
	} {
		got, err := KindCode(tt.in)
		if err != nil {
			t.Errorf("KindCode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("KindCode(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := KindCode("stack"); !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("KindCode(stack) = %v, want ErrUnsupportedKind", err)
	}
}
