// Package derive implements deterministic seeded address derivation for
// Frostbite VM and segment accounts.
//
// Addresses are create-with-seed style account locators:
//
//	addr = sha256(authority || seedString || programID)
//
// The seed strings are fixed-format and byte-exact; any deviation in
// casing, padding or field order silently derives a different address,
// so the builders here are covered by golden-vector tests.
package derive

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/frostbite-labs/frostbite-go/internal/types"
)

// Seed string prefixes for the seeded (v3) account family.
const (
	VMSeedPrefix      = "fbv1:vm:"
	SegmentSeedPrefix = "fbv1:sg:"

	// MaxSeedLen is the ledger's limit on a derivation seed string.
	MaxSeedLen = 32
)

// Segment kind codes.
const (
	KindWeights uint8 = 1
	KindRAM     uint8 = 2
)

// Slot bounds for mapped segments.
const (
	MinSlot = 1
	MaxSlot = 15
)

var (
	// ErrSeedTooLong is returned when a seed string exceeds the ledger limit.
	ErrSeedTooLong = errors.New("derivation seed exceeds 32 bytes")

	// ErrUnsupportedKind is returned for a segment kind outside weights|ram.
	ErrUnsupportedKind = errors.New("unsupported segment kind")

	// ErrSlotOutOfRange is returned for a slot outside 1..15.
	ErrSlotOutOfRange = errors.New("segment slot out of range (1..15)")
)

// VMSeedString builds the derivation seed for a VM account:
// "fbv1:vm:" + lowercase zero-padded 16-digit hex seed.
func VMSeedString(vmSeed uint64) string {
	return fmt.Sprintf("%s%016x", VMSeedPrefix, vmSeed)
}

// SegmentSeedString builds the derivation seed for a segment account:
// "fbv1:sg:" + hex16(seed) + ":" + hex2(kind) + hex2(slot).
func SegmentSeedString(vmSeed uint64, kind, slot uint8) string {
	return fmt.Sprintf("%s%016x:%02x%02x", SegmentSeedPrefix, vmSeed, kind, slot)
}

// CreateWithSeed derives a program-owned address from a base key, a seed
// string and the owning program. This is a pure one-way derivation; the
// result is an account locator, not a key pair.
func CreateWithSeed(base types.Pubkey, seed string, owner types.Pubkey) (types.Pubkey, error) {
	if len(seed) > MaxSeedLen {
		return types.Pubkey{}, fmt.Errorf("%w: %q", ErrSeedTooLong, seed)
	}
	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	h.Write(owner[:])
	var p types.Pubkey
	copy(p[:], h.Sum(nil))
	return p, nil
}

// VMAddress derives the address of the VM account for (authority, seed).
func VMAddress(authority types.Pubkey, vmSeed uint64, programID types.Pubkey) (types.Pubkey, error) {
	return CreateWithSeed(authority, VMSeedString(vmSeed), programID)
}

// SegmentAddress derives the address of a segment account.
// The kind and slot are validated before deriving.
func SegmentAddress(authority types.Pubkey, vmSeed uint64, kind, slot uint8, programID types.Pubkey) (types.Pubkey, error) {
	if kind != KindWeights && kind != KindRAM {
		return types.Pubkey{}, fmt.Errorf("%w: %d", ErrUnsupportedKind, kind)
	}
	if slot < MinSlot || slot > MaxSlot {
		return types.Pubkey{}, fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
	}
	return CreateWithSeed(authority, SegmentSeedString(vmSeed, kind, slot), programID)
}

// KindCode resolves a case-insensitive segment kind name to its code.
func KindCode(kind string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "1", "weights":
		return KindWeights, nil
	case "2", "ram":
		return KindRAM, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected weights|ram)", ErrUnsupportedKind, kind)
	}
}

// KindName returns the canonical name for a segment kind code.
func KindName(kind uint8) string {
	switch kind {
	case KindWeights:
		return "weights"
	case KindRAM:
		return "ram"
	default:
		return "unknown"
	}
}

// ParseSeed parses a VM seed from its textual form. Decimal and 0x-hex
// are accepted. The value is carried as a string end to end because the
// full u64 range must round-trip exactly.
func ParseSeed(raw string) (uint64, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, errors.New("vm seed cannot be empty")
	}
	if rest, ok := strings.CutPrefix(text, "0x"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("vm seed %q: %w", raw, err)
		}
		return v, nil
	}
	if rest, ok := strings.CutPrefix(text, "0X"); ok {
		v, err := strconv.ParseUint(rest, 16, 64)
		if err != nil {
			return 0, fmt.Errorf("vm seed %q: %w", raw, err)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vm seed %q: %w", raw, err)
	}
	return v, nil
}
