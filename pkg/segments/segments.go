// Package segments validates and normalizes the memory segment layout
// of a Frostbite VM before any instruction touches the ledger.
//
// A run maps at most 15 segment accounts into the guest address space.
// Slot 1 must hold the weights segment and slots must be contiguous
// from 1, so that the on-chain mapper and every client agree on which
// account lands where.
package segments

import (
	"sort"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/derive"
)

// MaxSegments is the largest number of segments a VM may map.
const MaxSegments = 15

// Spec is a raw segment entry as it appears in an accounts descriptor
// or on a command line, before validation.
type Spec struct {
	// Kind is the segment kind name, case-insensitive: "weights" or "ram".
	Kind string

	// Slot is the mapping slot, 1..15. Zero means positional: the entry
	// takes the slot equal to its 1-based position in the list.
	Slot uint8

	// Writable declares the access mode. Must be true exactly for ram.
	Writable bool

	// Pubkey optionally pins the expected derived address. When set it is
	// cross-checked against the actual derivation.
	Pubkey types.Pubkey

	// Bytes is the account data size, used when creating the account.
	Bytes uint64
}

// Segment is a validated, derived segment ready for instruction building.
type Segment struct {
	Kind     uint8
	Slot     uint8
	Writable bool
	Address  types.Pubkey
	Bytes    uint64
}

// KindName returns the canonical kind name.
func (s Segment) KindName() string {
	return derive.KindName(s.Kind)
}

// Normalize validates raw segment specs and derives each address.
// The result is sorted by slot. All failures are ConfigError values.
func Normalize(raw []Spec, vmSeed uint64, authority, programID types.Pubkey) ([]Segment, error) {
	if len(raw) == 0 {
		return nil, &ConfigError{Field: "segments", Reason: "at least one segment is required"}
	}
	if len(raw) > MaxSegments {
		return nil, &ConfigError{
			Field:    "segments",
			Reason:   "too many segments",
			Expected: itoa(MaxSegments) + " or fewer",
			Actual:   itoa(len(raw)),
		}
	}

	out := make([]Segment, 0, len(raw))
	bySlot := make(map[uint8]int, len(raw))
	for i, spec := range raw {
		kind, err := derive.KindCode(spec.Kind)
		if err != nil {
			return nil, &ConfigError{
				Field:  fieldAt(i, "kind"),
				Reason: "unsupported segment kind",
				Actual: spec.Kind,
			}
		}

		slot := spec.Slot
		if slot == 0 {
			slot = uint8(i + 1)
		}
		if slot < derive.MinSlot || slot > derive.MaxSlot {
			return nil, &ConfigError{
				Field:    fieldAt(i, "slot"),
				Reason:   "slot out of range",
				Expected: "1..15",
				Actual:   itoa(int(slot)),
			}
		}
		if prev, dup := bySlot[slot]; dup {
			return nil, &ConfigError{
				Field:  fieldAt(i, "slot"),
				Reason: "slot already used by segment " + itoa(prev),
				Actual: itoa(int(slot)),
			}
		}
		bySlot[slot] = i

		// Weights map exclusively into slot 1; the mapper has no
		// read-only slots past it.
		if kind == derive.KindWeights && slot != 1 {
			return nil, &ConfigError{
				Field:    fieldAt(i, "slot"),
				Reason:   "weights segments are only supported in slot 1",
				Expected: "1",
				Actual:   itoa(int(slot)),
			}
		}

		wantWritable := kind == derive.KindRAM
		if spec.Writable != wantWritable {
			return nil, &ConfigError{
				Field:    fieldAt(i, "writable"),
				Reason:   "access mode must match kind (ram is writable, weights is read-only)",
				Expected: boolString(wantWritable),
				Actual:   boolString(spec.Writable),
			}
		}

		addr, err := derive.SegmentAddress(authority, vmSeed, kind, slot, programID)
		if err != nil {
			return nil, &ConfigError{Field: fieldAt(i, "pubkey"), Reason: err.Error()}
		}
		if !spec.Pubkey.IsZero() && spec.Pubkey != addr {
			return nil, &ConfigError{
				Field:    fieldAt(i, "pubkey"),
				Reason:   "pinned pubkey does not match derived address",
				Expected: addr.String(),
				Actual:   spec.Pubkey.String(),
			}
		}

		out = append(out, Segment{
			Kind:     kind,
			Slot:     slot,
			Writable: spec.Writable,
			Address:  addr,
			Bytes:    spec.Bytes,
		})
	}

	sort.Slice(out, func(a, b int) bool { return out[a].Slot < out[b].Slot })

	// Slots must be contiguous from 1 so the on-chain mapping is dense.
	for i, seg := range out {
		if int(seg.Slot) != i+1 {
			return nil, &ConfigError{
				Field:    "segments",
				Reason:   "slots must be contiguous starting at 1",
				Expected: itoa(i + 1),
				Actual:   itoa(int(seg.Slot)),
			}
		}
	}
	if out[0].Kind != derive.KindWeights {
		return nil, &ConfigError{
			Field:    "segments[0].kind",
			Reason:   "slot 1 must be a weights segment",
			Expected: "weights",
			Actual:   out[0].KindName(),
		}
	}

	return out, nil
}

// KindCodes returns the kind byte of every segment in slot order,
// in the shape the execute instruction carries.
func KindCodes(segs []Segment) []uint8 {
	codes := make([]uint8, len(segs))
	for i, s := range segs {
		codes[i] = s.Kind
	}
	return codes
}
