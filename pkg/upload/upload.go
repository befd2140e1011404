// Package upload pushes segment payloads on chain in transaction-sized
// chunks and makes the process resumable.
//
// Every chunk is checksummed with blake3 and recorded in a journal
// after its transaction confirms. A re-run of the same upload skips
// chunks whose recorded checksum matches the source bytes, so an
// interrupted multi-megabyte weights upload continues where it
// stopped instead of starting over.
package upload

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/instruction"
	"github.com/frostbite-labs/frostbite-go/pkg/rpcclient"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
)

// DefaultChunkSize keeps a write instruction inside the transaction
// size limit with room for signatures and account metas.
const DefaultChunkSize = 896

// Config controls an upload.
type Config struct {
	Client    *rpcclient.Client
	Authority *types.Keypair

	// Payer pays fees. Nil means the authority pays.
	Payer *types.Keypair

	ProgramID types.Pubkey
	VM        types.Pubkey
	Seed      uint64

	// ChunkSize is the payload bytes per transaction.
	ChunkSize int

	Commitment     string
	ConfirmTimeout time.Duration

	// Journal, when set, records confirmed chunks for resume.
	Journal *Journal

	// OnChunk, when set, is called after each chunk is confirmed or
	// skipped.
	OnChunk func(ChunkReport)
}

// DefaultConfig returns the default upload parameters.
func DefaultConfig() Config {
	return Config{
		ChunkSize:      DefaultChunkSize,
		Commitment:     rpcclient.CommitmentConfirmed,
		ConfirmTimeout: 60 * time.Second,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ChunkSize == 0 {
		c.ChunkSize = def.ChunkSize
	}
	if c.Commitment == "" {
		c.Commitment = def.Commitment
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = def.ConfirmTimeout
	}
	if c.Payer == nil {
		c.Payer = c.Authority
	}
	return c
}

// ChunkReport describes one processed chunk.
type ChunkReport struct {
	Offset    uint32
	Length    int
	Skipped   bool
	Signature types.Signature
}

// Report summarizes a completed upload.
type Report struct {
	Chunks  int
	Skipped int
	Bytes   int
}

// ReadPayload loads a payload file, transparently decompressing
// zstd sources named *.zst.
func ReadPayload(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return raw, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return out, nil
}

// Upload writes a payload into a segment chunk by chunk, sequentially.
// Chunks already journaled with a matching checksum are skipped.
func Upload(ctx context.Context, cfg Config, seg segments.Segment, payload []byte) (*Report, error) {
	cfg = cfg.WithDefaults()
	if cfg.Client == nil || cfg.Authority == nil {
		return nil, ErrIncompleteConfig
	}
	if seg.Bytes > 0 && uint64(len(payload)) > seg.Bytes {
		return nil, fmt.Errorf("%w: payload %d bytes, segment %d",
			ErrPayloadTooLarge, len(payload), seg.Bytes)
	}

	report := &Report{Bytes: len(payload)}
	for offset := 0; offset < len(payload); offset += cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := offset + cfg.ChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]
		sum := blake3.Sum256(chunk)
		report.Chunks++

		if cfg.Journal != nil {
			rec, err := cfg.Journal.Load(cfg.Seed, seg.Kind, seg.Slot, uint32(offset))
			if err != nil {
				return nil, err
			}
			if rec != nil && rec.Checksum == fmt.Sprintf("%x", sum) {
				report.Skipped++
				if cfg.OnChunk != nil {
					cfg.OnChunk(ChunkReport{Offset: uint32(offset), Length: len(chunk), Skipped: true})
				}
				continue
			}
		}

		write := instruction.WriteSegment{
			ProgramID: cfg.ProgramID,
			Authority: cfg.Authority.Pubkey(),
			VM:        cfg.VM,
			Segment:   seg.Address,
			Seed:      cfg.Seed,
			Kind:      seg.Kind,
			Slot:      seg.Slot,
			Offset:    uint32(offset),
			Payload:   chunk,
		}
		sig, err := submit(ctx, cfg, write.Build())
		if err != nil {
			return nil, fmt.Errorf("chunk at %d: %w", offset, err)
		}

		if cfg.Journal != nil {
			rec := &ChunkRecord{
				Checksum:  fmt.Sprintf("%x", sum),
				Signature: sig.String(),
			}
			if err := cfg.Journal.Save(cfg.Seed, seg.Kind, seg.Slot, uint32(offset), rec); err != nil {
				return nil, err
			}
		}
		if cfg.OnChunk != nil {
			cfg.OnChunk(ChunkReport{Offset: uint32(offset), Length: len(chunk), Signature: sig})
		}
	}
	return report, nil
}

// Clear zero-fills a byte range of a segment and drops any journaled
// chunks for it, so a following upload rewrites the range.
func Clear(ctx context.Context, cfg Config, seg segments.Segment, offset, length uint32) (types.Signature, error) {
	cfg = cfg.WithDefaults()
	if cfg.Client == nil || cfg.Authority == nil {
		return types.Signature{}, ErrIncompleteConfig
	}
	req := instruction.ClearSegment{
		ProgramID: cfg.ProgramID,
		Authority: cfg.Authority.Pubkey(),
		VM:        cfg.VM,
		Segment:   seg.Address,
		Seed:      cfg.Seed,
		Kind:      seg.Kind,
		Slot:      seg.Slot,
		Offset:    offset,
		Length:    length,
	}
	sig, err := submit(ctx, cfg, req.Build())
	if err != nil {
		return types.Signature{}, err
	}
	if cfg.Journal != nil {
		if err := cfg.Journal.DeleteSegment(cfg.Seed, seg.Kind, seg.Slot); err != nil {
			return types.Signature{}, err
		}
	}
	return sig, nil
}

// submit sends one single-instruction transaction and waits for it.
func submit(ctx context.Context, cfg Config, ins tx.Instruction) (types.Signature, error) {
	blockhash, _, err := cfg.Client.GetLatestBlockhash(ctx, cfg.Commitment)
	if err != nil {
		return types.Signature{}, err
	}
	txn, err := tx.NewTransaction([]tx.Instruction{ins}, cfg.Payer.Pubkey(), blockhash)
	if err != nil {
		return types.Signature{}, err
	}
	if err := txn.Sign(cfg.Payer, cfg.Authority); err != nil {
		return types.Signature{}, err
	}
	encoded, err := txn.Base64()
	if err != nil {
		return types.Signature{}, err
	}
	sig, err := cfg.Client.SendTransaction(ctx, encoded, cfg.Commitment)
	if err != nil {
		return types.Signature{}, err
	}
	if _, err := cfg.Client.WaitForSignature(ctx, sig, cfg.Commitment, cfg.ConfirmTimeout); err != nil {
		return types.Signature{}, err
	}
	return sig, nil
}
