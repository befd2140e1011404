package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frostbite-labs/frostbite-go/pkg/instruction"
	"github.com/frostbite-labs/frostbite-go/pkg/runner"
	"github.com/frostbite-labs/frostbite-go/pkg/upload"
	"github.com/frostbite-labs/frostbite-go/pkg/vmstate"
)

func loadProgramCmd() *cobra.Command {
	var entry uint32
	cmd := &cobra.Command{
		Use:   "load-program <program-file>",
		Short: "Load a guest program into the VM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			if entry == 0 && env.desc.VM.Entry != 0 {
				entry = env.desc.VM.Entry
			}
			payload, err := upload.ReadPayload(args[0])
			if err != nil {
				return err
			}
			req := instruction.LoadProgram{
				ProgramID: env.plan.ProgramID,
				Authority: env.plan.Authority,
				VM:        env.plan.VM,
				Seed:      env.plan.Seed,
				Entry:     entry,
				Payload:   payload,
			}
			sig, err := submit(cmd.Context(), client, payer, authority, req.Build())
			if err != nil {
				return err
			}
			log.Printf("program loaded (%d bytes, entry %#x): %s", len(payload), entry, sig)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&entry, "entry", 0, "entry program counter (default: vm.entry)")
	return cmd
}

func uploadCmd() *cobra.Command {
	var (
		slot        uint8
		chunkSize   int
		journalPath string
	)
	cmd := &cobra.Command{
		Use:   "upload <payload-file>",
		Short: "Upload a payload into a segment, resumably",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			seg, err := findSegment(env, slot)
			if err != nil {
				return err
			}
			payload, err := upload.ReadPayload(args[0])
			if err != nil {
				return err
			}

			cfg := upload.Config{
				Client:     client,
				Authority:  authority,
				Payer:      payer,
				ProgramID:  env.plan.ProgramID,
				VM:         env.plan.VM,
				Seed:       env.plan.Seed,
				ChunkSize:  chunkSize,
				Commitment: flags.commitment,
				OnChunk: func(r upload.ChunkReport) {
					if r.Skipped {
						log.Printf("chunk @%d (%d bytes): already uploaded", r.Offset, r.Length)
						return
					}
					log.Printf("chunk @%d (%d bytes): %s", r.Offset, r.Length, r.Signature)
				},
			}
			if journalPath != "" {
				journal, err := upload.OpenJournal(journalPath)
				if err != nil {
					return err
				}
				defer journal.Close()
				cfg.Journal = journal
			}

			report, err := upload.Upload(cmd.Context(), cfg, seg, payload)
			if err != nil {
				return err
			}
			log.Printf("uploaded %d bytes in %d chunks (%d skipped) to segment %d",
				report.Bytes, report.Chunks, report.Skipped, slot)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&slot, "segment-slot", 1, "target segment slot")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", upload.DefaultChunkSize, "payload bytes per transaction")
	cmd.Flags().StringVar(&journalPath, "journal", "", "upload journal database for resume")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		instructions  uint64
		minBudget     uint64
		maxBudget     uint64
		maxTx         int
		resume        bool
		useMax        bool
		outputFormat  string
		journalPath   string
		controlOffset uint32
		outputMax     uint32
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the VM to completion across transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			cfg := runner.Config{
				Client:          client,
				Authority:       authority,
				Payer:           payer,
				ProgramID:       env.plan.ProgramID,
				VM:              env.plan.VM,
				Seed:            env.plan.Seed,
				Segments:        env.plan.Segments,
				Instructions:    instructions,
				MinInstructions: minBudget,
				MaxInstructions: maxBudget,
				MaxTx:           maxTx,
				Resume:          resume,
				Commitment:      flags.commitment,
				ControlOffset:   controlOffset,
				OutputMax:       outputMax,
				UseMaxOutput:    useMax,
				OnTransaction: func(r runner.TxReport) {
					log.Printf("tx %d: budget %d, slot %d, halted %v: %s",
						r.Index, r.Budget, r.Slot, r.Halted, r.Signature)
				},
			}
			if journalPath != "" {
				journal, err := runner.OpenJournal(journalPath)
				if err != nil {
					return err
				}
				defer journal.Close()
				cfg.Journal = journal
			}

			res, err := runner.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			log.Printf("vm halted after %d transactions, status %d", res.Transactions, res.Status)
			if len(res.Output) > 0 {
				rendered, err := vmstate.DecodeOutput(res.Output, outputFormat)
				if err != nil {
					return err
				}
				fmt.Println(rendered)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&instructions, "instructions", 0, "starting per-transaction instruction budget")
	cmd.Flags().Uint64Var(&minBudget, "min-instructions", 0, "budget floor")
	cmd.Flags().Uint64Var(&maxBudget, "max-instructions", 0, "budget cap")
	cmd.Flags().IntVar(&maxTx, "max-tx", 0, "transaction ceiling for this invocation")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue a previous run instead of restarting")
	cmd.Flags().BoolVar(&useMax, "use-max", false, "read --output-max bytes when the guest reports no output length")
	cmd.Flags().StringVar(&outputFormat, "output-format", "i32", "output rendering: i32, u8 or hex")
	cmd.Flags().StringVar(&journalPath, "journal", "", "run journal database")
	cmd.Flags().Uint32Var(&controlOffset, "control-offset", 0, "control block offset in scratch memory")
	cmd.Flags().Uint32Var(&outputMax, "output-max", 0, "cap on output bytes read back")
	return cmd
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the VM run state",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			req := instruction.Reset{
				ProgramID: env.plan.ProgramID,
				Authority: env.plan.Authority,
				VM:        env.plan.VM,
				Seed:      env.plan.Seed,
			}
			sig, err := submit(cmd.Context(), client, payer, authority, req.Build())
			if err != nil {
				return err
			}
			log.Printf("vm %s reset: %s", env.plan.VM, sig)
			return nil
		},
	}
}

func clearSegmentCmd() *cobra.Command {
	var (
		slot        uint8
		offset      uint32
		length      uint32
		journalPath string
	)
	cmd := &cobra.Command{
		Use:   "clear-segment",
		Short: "Zero-fill a byte range of a segment",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			seg, err := findSegment(env, slot)
			if err != nil {
				return err
			}
			if length == 0 {
				if seg.Bytes == 0 {
					return fmt.Errorf("segment %d has no declared size; pass --length", slot)
				}
				length = uint32(seg.Bytes)
			}

			cfg := upload.Config{
				Client:     client,
				Authority:  authority,
				Payer:      payer,
				ProgramID:  env.plan.ProgramID,
				VM:         env.plan.VM,
				Seed:       env.plan.Seed,
				Commitment: flags.commitment,
			}
			if journalPath != "" {
				journal, err := upload.OpenJournal(journalPath)
				if err != nil {
					return err
				}
				defer journal.Close()
				cfg.Journal = journal
			}
			sig, err := upload.Clear(cmd.Context(), cfg, seg, offset, length)
			if err != nil {
				return err
			}
			log.Printf("segment %d cleared [%d,%d): %s", slot, offset, offset+length, sig)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&slot, "segment-slot", 1, "target segment slot")
	cmd.Flags().Uint32Var(&offset, "offset", 0, "range start")
	cmd.Flags().Uint32Var(&length, "length", 0, "range length (default: whole segment)")
	cmd.Flags().StringVar(&journalPath, "journal", "", "upload journal to invalidate")
	return cmd
}
