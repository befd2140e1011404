// Package accountsfile reads and writes the TOML descriptor that binds
// a deployment together: cluster endpoint, program id, VM seed and the
// segment layout.
//
// The seed must round-trip the full u64 range, so it is always written
// back as a decimal string even when the source file used a TOML
// integer.
package accountsfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/derive"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
)

// Cluster names the endpoint and signers of a deployment.
type Cluster struct {
	RPCURL    string `toml:"rpc_url"`
	ProgramID string `toml:"program_id,omitempty"`
	Payer     string `toml:"payer,omitempty"`
}

// VM describes the VM account. Seed accepts a TOML integer or a
// decimal/0x-hex string; it is normalized to a decimal string on save.
type VM struct {
	Seed             any    `toml:"seed"`
	Pubkey           string `toml:"pubkey,omitempty"`
	Authority        string `toml:"authority,omitempty"`
	AuthorityKeypair string `toml:"authority_keypair,omitempty"`
	Entry            uint32 `toml:"entry,omitempty"`
}

// SegmentEntry is one [[segments]] block.
type SegmentEntry struct {
	Kind     string `toml:"kind"`
	Slot     uint8  `toml:"slot,omitempty"`
	Writable bool   `toml:"writable"`
	Pubkey   string `toml:"pubkey,omitempty"`
	Bytes    uint64 `toml:"bytes,omitempty"`
}

// Descriptor is a parsed accounts file. Relative paths inside it
// resolve against the file's directory.
type Descriptor struct {
	Cluster  Cluster        `toml:"cluster"`
	VM       VM             `toml:"vm"`
	Segments []SegmentEntry `toml:"segments"`

	dir string
}

// Load reads and parses a descriptor file.
func Load(path string) (*Descriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var d Descriptor
	if err := toml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve accounts file path: %w", err)
	}
	d.dir = filepath.Dir(abs)
	if _, err := d.Seed(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the descriptor, normalizing the seed to a decimal string.
func (d *Descriptor) Save(path string) error {
	seed, err := d.Seed()
	if err != nil {
		return err
	}
	out := *d
	out.VM.Seed = strconv.FormatUint(seed, 10)
	raw, err := toml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write accounts file: %w", err)
	}
	return nil
}

// Seed returns the VM seed as a u64.
func (d *Descriptor) Seed() (uint64, error) {
	switch v := d.VM.Seed.(type) {
	case nil:
		return 0, ErrMissingSeed
	case string:
		return derive.ParseSeed(v)
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: %d", ErrNegativeSeed, v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case float64:
		// TOML integers never decode as floats with go-toml; anything
		// that did is not an exact seed.
		return 0, fmt.Errorf("%w: %v", ErrBadSeedType, v)
	default:
		return 0, fmt.Errorf("%w: %T", ErrBadSeedType, v)
	}
}

// ProgramID returns the configured program id, or the default devnet
// deployment when unset.
func (d *Descriptor) ProgramID() (types.Pubkey, error) {
	if d.Cluster.ProgramID == "" {
		return types.DefaultProgramAddr, nil
	}
	p, err := types.PubkeyFromBase58(d.Cluster.ProgramID)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("cluster.program_id: %w", err)
	}
	return p, nil
}

// ResolvePath resolves a path from the descriptor against the
// descriptor's directory when relative.
func (d *Descriptor) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || d.dir == "" {
		return p
	}
	return filepath.Join(d.dir, p)
}

// ResolveAuthority loads the authority keypair and cross-checks it
// against a pinned vm.authority pubkey when both are present.
func (d *Descriptor) ResolveAuthority() (*types.Keypair, error) {
	if d.VM.AuthorityKeypair == "" {
		return nil, ErrMissingAuthorityKeypair
	}
	kp, err := types.LoadKeypairFile(d.ResolvePath(d.VM.AuthorityKeypair))
	if err != nil {
		return nil, err
	}
	if d.VM.Authority != "" {
		pinned, err := types.PubkeyFromBase58(d.VM.Authority)
		if err != nil {
			return nil, fmt.Errorf("vm.authority: %w", err)
		}
		if pinned != kp.Pubkey() {
			return nil, fmt.Errorf("%w: keypair is %s, vm.authority pins %s",
				ErrAuthorityMismatch, kp.Pubkey(), pinned)
		}
	}
	return kp, nil
}

// AuthorityPubkey returns the authority address without needing the
// keypair file: the pinned vm.authority when set, otherwise the
// keypair's public key.
func (d *Descriptor) AuthorityPubkey() (types.Pubkey, error) {
	if d.VM.Authority != "" {
		p, err := types.PubkeyFromBase58(d.VM.Authority)
		if err != nil {
			return types.Pubkey{}, fmt.Errorf("vm.authority: %w", err)
		}
		return p, nil
	}
	kp, err := d.ResolveAuthority()
	if err != nil {
		return types.Pubkey{}, err
	}
	return kp.Pubkey(), nil
}

// LoadPayer loads the fee payer keypair, falling back to the authority
// keypair when cluster.payer is unset.
func (d *Descriptor) LoadPayer() (*types.Keypair, error) {
	if d.Cluster.Payer == "" {
		return d.ResolveAuthority()
	}
	return types.LoadKeypairFile(d.ResolvePath(d.Cluster.Payer))
}

// Plan is the fully derived account layout of a descriptor.
type Plan struct {
	Seed      uint64
	Authority types.Pubkey
	ProgramID types.Pubkey
	VM        types.Pubkey
	Segments  []segments.Segment
}

// Plan validates the descriptor and derives every address, cross
// checking any pinned pubkeys.
func (d *Descriptor) Plan() (*Plan, error) {
	seed, err := d.Seed()
	if err != nil {
		return nil, err
	}
	programID, err := d.ProgramID()
	if err != nil {
		return nil, err
	}
	authority, err := d.AuthorityPubkey()
	if err != nil {
		return nil, err
	}

	vmAddr, err := derive.VMAddress(authority, seed, programID)
	if err != nil {
		return nil, err
	}
	if d.VM.Pubkey != "" {
		pinned, err := types.PubkeyFromBase58(d.VM.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("vm.pubkey: %w", err)
		}
		if pinned != vmAddr {
			return nil, fmt.Errorf("%w: derived %s, vm.pubkey pins %s",
				ErrVMPubkeyMismatch, vmAddr, pinned)
		}
	}

	specs := make([]segments.Spec, len(d.Segments))
	for i, entry := range d.Segments {
		spec := segments.Spec{
			Kind:     entry.Kind,
			Slot:     entry.Slot,
			Writable: entry.Writable,
			Bytes:    entry.Bytes,
		}
		if entry.Pubkey != "" {
			pinned, err := types.PubkeyFromBase58(entry.Pubkey)
			if err != nil {
				return nil, fmt.Errorf("segments[%d].pubkey: %w", i, err)
			}
			spec.Pubkey = pinned
		}
		specs[i] = spec
	}
	segs, err := segments.Normalize(specs, seed, authority, programID)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Seed:      seed,
		Authority: authority,
		ProgramID: programID,
		VM:        vmAddr,
		Segments:  segs,
	}, nil
}
