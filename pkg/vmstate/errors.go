package vmstate

import "errors"

var (
	// ErrShortAccount is returned when account data is smaller than the
	// layout requires.
	ErrShortAccount = errors.New("vm account too small")

	// ErrBadMagic is returned when the control block marker is wrong.
	ErrBadMagic = errors.New("control block magic mismatch")

	// ErrBadABIVersion is returned for an unsupported control block
	// layout version.
	ErrBadABIVersion = errors.New("unsupported control block abi version")

	// ErrOutputOutOfRange is returned when the guest-reported output
	// region falls outside scratch memory.
	ErrOutputOutOfRange = errors.New("output region out of range")

	// ErrBadOutputLength is returned when output bytes cannot decode in
	// the requested format.
	ErrBadOutputLength = errors.New("bad output length")

	// ErrUnknownFormat is returned for an unrecognized output format.
	ErrUnknownFormat = errors.New("unknown output format")
)
