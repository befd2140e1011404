package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frostbite-labs/frostbite-go/pkg/derive"
	"github.com/frostbite-labs/frostbite-go/pkg/instruction"
	"github.com/frostbite-labs/frostbite-go/pkg/vmstate"
)

func deriveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "derive",
		Short: "Print the derived VM and segment addresses",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			p := env.plan
			fmt.Printf("seed:      %d\n", p.Seed)
			fmt.Printf("authority: %s\n", p.Authority)
			fmt.Printf("program:   %s\n", p.ProgramID)
			fmt.Printf("vm:        %s  (%s)\n", p.VM, derive.VMSeedString(p.Seed))
			for _, seg := range p.Segments {
				fmt.Printf("segment %d: %s  (%s, %s)\n",
					seg.Slot, seg.Address,
					derive.SegmentSeedString(p.Seed, seg.Kind, seg.Slot),
					seg.KindName())
			}
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create and initialize the VM and segment accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnv()
			if err != nil {
				return err
			}
			client, err := env.client()
			if err != nil {
				return err
			}
			authority, payer, err := env.signers()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			p := env.plan

			vmRent, err := client.GetMinimumBalanceForRentExemption(ctx, vmstate.MinAccountSize)
			if err != nil {
				return err
			}
			create := instruction.CreateAccountWithSeed{
				Funder:   payer.Pubkey(),
				Address:  p.VM,
				Base:     p.Authority,
				Seed:     derive.VMSeedString(p.Seed),
				Lamports: vmRent,
				Space:    vmstate.MinAccountSize,
				Owner:    p.ProgramID,
			}
			initVM := instruction.InitVM{
				ProgramID: p.ProgramID,
				Authority: p.Authority,
				VM:        p.VM,
				Seed:      p.Seed,
			}
			sig, err := submit(ctx, client, payer, authority, create.Build(), initVM.Build())
			if err != nil {
				return fmt.Errorf("init vm: %w", err)
			}
			log.Printf("vm %s initialized: %s", p.VM, sig)

			for _, seg := range p.Segments {
				if seg.Bytes == 0 {
					return fmt.Errorf("segment %d: bytes is required to create the account", seg.Slot)
				}
				rent, err := client.GetMinimumBalanceForRentExemption(ctx, seg.Bytes)
				if err != nil {
					return err
				}
				createSeg := instruction.CreateAccountWithSeed{
					Funder:   payer.Pubkey(),
					Address:  seg.Address,
					Base:     p.Authority,
					Seed:     derive.SegmentSeedString(p.Seed, seg.Kind, seg.Slot),
					Lamports: rent,
					Space:    seg.Bytes,
					Owner:    p.ProgramID,
				}
				initSeg := instruction.InitSegment{
					ProgramID:  p.ProgramID,
					Authority:  p.Authority,
					VM:         p.VM,
					Segment:    seg.Address,
					Seed:       p.Seed,
					Kind:       seg.Kind,
					Slot:       seg.Slot,
					PayloadLen: uint32(seg.Bytes),
				}
				sig, err := submit(ctx, client, payer, authority, createSeg.Build(), initSeg.Build())
				if err != nil {
					return fmt.Errorf("init segment %d: %w", seg.Slot, err)
				}
				log.Printf("segment %d (%s) %s initialized: %s", seg.Slot, seg.KindName(), seg.Address, sig)
			}
			return nil
		},
	}
}

func closeSegmentCmd() *cobra.Command {
	var slot uint8
	var recipient string
	cmd := &cobra.Command{
		Use:   "close-segment",
		Short: "Close a segment account and reclaim its lamports",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			seg, err := findSegment(env, slot)
			if err != nil {
				return err
			}
			to, err := parseRecipient(recipient, env.plan.Authority)
			if err != nil {
				return err
			}
			req := instruction.CloseSegment{
				ProgramID: env.plan.ProgramID,
				Authority: env.plan.Authority,
				VM:        env.plan.VM,
				Segment:   seg.Address,
				Recipient: to,
				Seed:      env.plan.Seed,
				Kind:      seg.Kind,
				Slot:      seg.Slot,
			}
			sig, err := submit(cmd.Context(), client, payer, authority, req.Build())
			if err != nil {
				return err
			}
			log.Printf("segment %d closed to %s: %s", slot, to, sig)
			return nil
		},
	}
	cmd.Flags().Uint8Var(&slot, "segment-slot", 1, "segment slot to close")
	cmd.Flags().StringVar(&recipient, "recipient", "", "lamport recipient (default: authority)")
	return cmd
}

func closeVMCmd() *cobra.Command {
	var recipient string
	cmd := &cobra.Command{
		Use:   "close-vm",
		Short: "Close the VM account and reclaim its lamports",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, client, authority, payer, err := connectedEnv()
			if err != nil {
				return err
			}
			to, err := parseRecipient(recipient, env.plan.Authority)
			if err != nil {
				return err
			}
			req := instruction.CloseVM{
				ProgramID: env.plan.ProgramID,
				Authority: env.plan.Authority,
				VM:        env.plan.VM,
				Recipient: to,
				Seed:      env.plan.Seed,
			}
			sig, err := submit(cmd.Context(), client, payer, authority, req.Build())
			if err != nil {
				return err
			}
			log.Printf("vm %s closed to %s: %s", env.plan.VM, to, sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&recipient, "recipient", "", "lamport recipient (default: authority)")
	return cmd
}
