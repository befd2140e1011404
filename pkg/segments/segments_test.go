package segments

import (
	"errors"
	"strings"
	"testing"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/derive"
)

var (
	testAuthority = types.MustPubkeyFromBase58("4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
	testProgram   = types.DefaultProgramAddr
)

const testSeed = uint64(1234567890123456789)

func normalize(t *testing.T, raw []Spec) ([]Segment, error) {
	t.Helper()
	return Normalize(raw, testSeed, testAuthority, testProgram)
}

func TestNormalizeBasic(t *testing.T) {
	segs, err := normalize(t, []Spec{
		{Kind: "weights", Slot: 1, Writable: false, Bytes: 1 << 20},
		{Kind: "ram", Slot: 2, Writable: true, Bytes: 1 << 16},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Kind != derive.KindWeights || segs[0].Slot != 1 || segs[0].Writable {
		t.Errorf("segment 0 = %+v, want weights@1 read-only", segs[0])
	}
	if segs[1].Kind != derive.KindRAM || segs[1].Slot != 2 || !segs[1].Writable {
		t.Errorf("segment 1 = %+v, want ram@2 writable", segs[1])
	}

	wantWeights, _ := derive.SegmentAddress(testAuthority, testSeed, derive.KindWeights, 1, testProgram)
	if segs[0].Address != wantWeights {
		t.Errorf("weights address = %s, want %s", segs[0].Address, wantWeights)
	}
}

func TestNormalizePositionalSlotsAndSorting(t *testing.T) {
	// Zero slots take positional defaults; explicit slots sort into place.
	segs, err := normalize(t, []Spec{
		{Kind: "weights", Writable: false},
		{Kind: "ram", Writable: true},
		{Kind: "ram", Slot: 3, Writable: true},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i, seg := range segs {
		if int(seg.Slot) != i+1 {
			t.Errorf("segment %d slot = %d, want %d", i, seg.Slot, i+1)
		}
	}
}

func TestNormalizeCaseInsensitiveKind(t *testing.T) {
	_, err := normalize(t, []Spec{
		{Kind: "WEIGHTS", Slot: 1, Writable: false},
		{Kind: "Ram", Slot: 2, Writable: true},
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
}

func TestNormalizePinnedPubkey(t *testing.T) {
	addr, err := derive.SegmentAddress(testAuthority, testSeed, derive.KindWeights, 1, testProgram)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := normalize(t, []Spec{{Kind: "weights", Slot: 1, Pubkey: addr}}); err != nil {
		t.Errorf("matching pinned pubkey rejected: %v", err)
	}

	var wrong types.Pubkey
	wrong[0] = 0xFF
	_, err = normalize(t, []Spec{{Kind: "weights", Slot: 1, Pubkey: wrong}})
	var cerr *ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want ConfigError", err)
	}
	if cerr.Field != "segments[0].pubkey" {
		t.Errorf("field = %q, want segments[0].pubkey", cerr.Field)
	}
	if cerr.Expected != addr.String() {
		t.Errorf("expected = %q, want derived address %s", cerr.Expected, addr)
	}
}

func TestNormalizeRejections(t *testing.T) {
	many := make([]Spec, MaxSegments+1)
	many[0] = Spec{Kind: "weights", Writable: false}
	for i := 1; i < len(many); i++ {
		many[i] = Spec{Kind: "ram", Writable: true}
	}

	tests := []struct {
		name      string
		raw       []Spec
		wantField string
	}{
		{"empty", nil, "segments"},
		{"too many", many, "segments"},
		{"bad kind", []Spec{{Kind: "stack", Slot: 1}}, "segments[0].kind"},
		{"slot too big", []Spec{{Kind: "weights", Slot: 16}}, "segments[0].slot"},
		{"duplicate slot", []Spec{
			{Kind: "weights", Slot: 1},
			{Kind: "ram", Slot: 1, Writable: true},
		}, "segments[1].slot"},
		{"weights writable", []Spec{{Kind: "weights", Slot: 1, Writable: true}}, "segments[0].writable"},
		{"ram read-only", []Spec{
			{Kind: "weights", Slot: 1},
			{Kind: "ram", Slot: 2, Writable: false},
		}, "segments[1].writable"},
		{"gap in slots", []Spec{
			{Kind: "weights", Slot: 1},
			{Kind: "ram", Slot: 3, Writable: true},
		}, "segments"},
		{"slot 1 not weights", []Spec{
			{Kind: "ram", Slot: 1, Writable: true},
		}, "segments[0].kind"},
		{"weights outside slot 1", []Spec{
			{Kind: "weights", Slot: 1},
			{Kind: "weights", Slot: 2},
		}, "segments[1].slot"},
		{"missing slot 1", []Spec{
			{Kind: "ram", Slot: 2, Writable: true},
		}, "segments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalize(t, tt.raw)
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("got %v, want ConfigError", err)
			}
			if cerr.Field != tt.wantField {
				t.Errorf("field = %q, want %q (error: %v)", cerr.Field, tt.wantField, cerr)
			}
		})
	}
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{
		Field:    "segments[0].writable",
		Reason:   "access mode must match kind (ram is writable, weights is read-only)",
		Expected: "true",
		Actual:   "false",
	}
	msg := err.Error()
	for _, want := range []string{"segments[0].writable", "expected true", "got false"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestKindCodes(t *testing.T) {
	segs, err := normalize(t, []Spec{
		{Kind: "weights", Slot: 1},
		{Kind: "ram", Slot: 2, Writable: true},
		{Kind: "ram", Slot: 3, Writable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	codes := KindCodes(segs)
	want := []uint8{derive.KindWeights, derive.KindRAM, derive.KindRAM}
	if len(codes) != len(want) {
		t.Fatalf("got %d codes, want %d", len(codes), len(want))
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("codes[%d] = %d, want %d", i, codes[i], want[i])
		}
	}
}
