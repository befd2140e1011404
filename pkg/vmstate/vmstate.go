// Package vmstate decodes the on-chain VM account layout: the fixed
// header, the guest control block and the output region.
//
// The account is header followed by guest-visible memory ("scratch").
// The control block lives inside scratch at a caller-supplied offset
// and carries the guest ABI pointers; all multi-byte fields are
// little-endian u32 except the trailing u64 reserve.
package vmstate

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Account layout constants.
const (
	// HeaderSize is the size of the VM account header.
	HeaderSize = 552

	// ScratchSize is the guest memory size following the header.
	ScratchSize = 262_144

	// MinAccountSize is the smallest valid VM account.
	MinAccountSize = HeaderSize + ScratchSize

	// ControlBlockSize is the guest ABI control block size.
	ControlBlockSize = 64

	// Magic is "FBM1" little-endian, the control block marker.
	Magic uint32 = 0x314D4246

	// ABIVersion is the control block layout version this client reads.
	ABIVersion uint32 = 1

	// haltedOffset is the halted flag's position in the header.
	haltedOffset = 16
)

// Guest status codes as written to the control block.
const (
	StatusRunning uint32 = 0
	StatusDone    uint32 = 1
	StatusError   uint32 = 2
	StatusWaiting uint32 = 3
)

// ControlBlock is the guest ABI block decoded from scratch memory.
// Pointers are guest addresses relative to the start of scratch.
type ControlBlock struct {
	Magic      uint32
	ABIVersion uint32
	Flags      uint32
	Status     uint32
	InputPtr   uint32
	InputLen   uint32
	OutputPtr  uint32
	OutputLen  uint32
	ScratchPtr uint32
	ScratchLen uint32
	UserPtr    uint32
	UserLen    uint32
	Reserved   uint64
}

// RunState is the driver's view of a VM between transactions.
type RunState struct {
	// Halted is the interpreter's halted flag from the header.
	Halted bool

	// Status is the guest status code from the control block.
	Status uint32

	// OutputLen is the guest-reported output length.
	OutputLen uint32

	// OutputPtr is the guest-reported output position in scratch.
	OutputPtr uint32
}

// DecodeControlBlock decodes the control block found at the given
// offset of scratch memory and validates its magic and ABI version.
func DecodeControlBlock(scratch []byte, offset uint32) (*ControlBlock, error) {
	end := uint64(offset) + ControlBlockSize
	if end > uint64(len(scratch)) {
		return nil, fmt.Errorf("%w: control block at %d overruns %d-byte scratch",
			ErrShortAccount, offset, len(scratch))
	}
	b := scratch[offset:end]
	cb := &ControlBlock{
		Magic:      binary.LittleEndian.Uint32(b[0:]),
		ABIVersion: binary.LittleEndian.Uint32(b[4:]),
		Flags:      binary.LittleEndian.Uint32(b[8:]),
		Status:     binary.LittleEndian.Uint32(b[12:]),
		InputPtr:   binary.LittleEndian.Uint32(b[16:]),
		InputLen:   binary.LittleEndian.Uint32(b[20:]),
		OutputPtr:  binary.LittleEndian.Uint32(b[24:]),
		OutputLen:  binary.LittleEndian.Uint32(b[28:]),
		ScratchPtr: binary.LittleEndian.Uint32(b[32:]),
		ScratchLen: binary.LittleEndian.Uint32(b[36:]),
		UserPtr:    binary.LittleEndian.Uint32(b[40:]),
		UserLen:    binary.LittleEndian.Uint32(b[44:]),
		Reserved:   binary.LittleEndian.Uint64(b[48:]),
	}
	if cb.Magic != Magic {
		return nil, fmt.Errorf("%w: got %#08x, want %#08x", ErrBadMagic, cb.Magic, Magic)
	}
	if cb.ABIVersion != ABIVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadABIVersion, cb.ABIVersion, ABIVersion)
	}
	return cb, nil
}

// ReadRunState extracts the halted flag and guest status from a fetched
// VM account. controlOffset is the control block position within
// scratch memory.
func ReadRunState(account []byte, controlOffset uint32) (*RunState, error) {
	if len(account) < MinAccountSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d",
			ErrShortAccount, len(account), MinAccountSize)
	}
	halted := binary.LittleEndian.Uint32(account[haltedOffset:]) != 0
	cb, err := DecodeControlBlock(account[HeaderSize:], controlOffset)
	if err != nil {
		return nil, err
	}
	return &RunState{
		Halted:    halted,
		Status:    cb.Status,
		OutputLen: cb.OutputLen,
		OutputPtr: cb.OutputPtr,
	}, nil
}

// ReadOutput copies the guest output region out of a fetched VM
// account. outputMax caps a guest-reported length that overruns it;
// zero means no cap beyond the account bounds. With useMax set, a
// zero reported length falls back to reading outputMax bytes from the
// output pointer, for guests that fill the region without writing a
// length back.
func ReadOutput(account []byte, state *RunState, outputMax uint32, useMax bool) ([]byte, error) {
	if len(account) < MinAccountSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d",
			ErrShortAccount, len(account), MinAccountSize)
	}
	length := state.OutputLen
	if length == 0 && useMax {
		length = outputMax
	}
	if outputMax > 0 && length > outputMax {
		length = outputMax
	}
	if length == 0 {
		return nil, nil
	}
	scratch := account[HeaderSize:]
	start := uint64(state.OutputPtr)
	end := start + uint64(length)
	if end > uint64(len(scratch)) {
		return nil, fmt.Errorf("%w: output [%d,%d) overruns %d-byte scratch",
			ErrOutputOutOfRange, start, end, len(scratch))
	}
	out := make([]byte, length)
	copy(out, scratch[start:end])
	return out, nil
}

// DecodeI32 decodes output bytes as little-endian signed 32-bit values.
func DecodeI32(output []byte) ([]int32, error) {
	if len(output)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrBadOutputLength, len(output))
	}
	vals := make([]int32, len(output)/4)
	for i := range vals {
		vals[i] = int32(binary.LittleEndian.Uint32(output[i*4:]))
	}
	return vals, nil
}

// DecodeOutput renders output bytes in a named format: "i32" as a
// space-separated list of signed values, "u8" as a byte list, "hex"
// as lowercase hex.
func DecodeOutput(output []byte, format string) (string, error) {
	switch format {
	case "i32":
		vals, err := DecodeI32(output)
		if err != nil {
			return "", err
		}
		s := ""
		for i, v := range vals {
			if i > 0 {
				s += " "
			}
			s += fmt.Sprintf("%d", v)
		}
		return s, nil
	case "u8":
		s := ""
		for i, v := range output {
			if i > 0 {
				s += " "
			}
			s += fmt.Sprintf("%d", v)
		}
		return s, nil
	case "hex":
		return hex.EncodeToString(output), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
