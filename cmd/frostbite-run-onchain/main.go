// frostbite-run-onchain manages Frostbite VM deployments on a ledger:
// deriving accounts, creating them, uploading payloads and driving
// runs to completion.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/accountsfile"
	"github.com/frostbite-labs/frostbite-go/pkg/rpcclient"
	"github.com/frostbite-labs/frostbite-go/pkg/segments"
	"github.com/frostbite-labs/frostbite-go/pkg/tx"
)

var flags struct {
	accounts         string
	rpcURL           string
	programID        string
	payer            string
	authorityKeypair string
	commitment       string
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	root := &cobra.Command{
		Use:           "frostbite-run-onchain",
		Short:         "Manage and run Frostbite VMs on chain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.accounts, "accounts", "accounts.toml", "accounts descriptor file")
	pf.StringVar(&flags.rpcURL, "rpc-url", "", "RPC endpoint (overrides descriptor)")
	pf.StringVar(&flags.programID, "program-id", "", "program id (overrides descriptor)")
	pf.StringVar(&flags.payer, "payer", "", "fee payer keypair file (overrides descriptor)")
	pf.StringVar(&flags.authorityKeypair, "authority-keypair", "", "authority keypair file (overrides descriptor)")
	pf.StringVar(&flags.commitment, "commitment", rpcclient.CommitmentConfirmed, "commitment level")

	root.AddCommand(
		deriveCmd(),
		initCmd(),
		loadProgramCmd(),
		uploadCmd(),
		runCmd(),
		resetCmd(),
		clearSegmentCmd(),
		closeSegmentCmd(),
		closeVMCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Printf("error: %v", err)
		os.Exit(1)
	}
}

// env is everything a command needs: the parsed descriptor with flag
// overrides applied, the derived plan, and lazily the RPC client and
// signers.
type env struct {
	desc *accountsfile.Descriptor
	plan *accountsfile.Plan
}

func loadEnv() (*env, error) {
	desc, err := accountsfile.Load(flags.accounts)
	if err != nil {
		return nil, err
	}
	if flags.rpcURL != "" {
		desc.Cluster.RPCURL = flags.rpcURL
	}
	if flags.programID != "" {
		desc.Cluster.ProgramID = flags.programID
	}
	if flags.payer != "" {
		desc.Cluster.Payer = flags.payer
	}
	if flags.authorityKeypair != "" {
		desc.VM.AuthorityKeypair = flags.authorityKeypair
	}
	plan, err := desc.Plan()
	if err != nil {
		return nil, err
	}
	return &env{desc: desc, plan: plan}, nil
}

func (e *env) client() (*rpcclient.Client, error) {
	if e.desc.Cluster.RPCURL == "" {
		return nil, fmt.Errorf("no RPC endpoint: set cluster.rpc_url or --rpc-url")
	}
	return rpcclient.New(rpcclient.Config{Endpoint: e.desc.Cluster.RPCURL})
}

func (e *env) signers() (authority, payer *types.Keypair, err error) {
	authority, err = e.desc.ResolveAuthority()
	if err != nil {
		return nil, nil, err
	}
	payer, err = e.desc.LoadPayer()
	if err != nil {
		return nil, nil, err
	}
	return authority, payer, nil
}

// connectedEnv loads the descriptor, plan, RPC client and signers in
// one step for commands that always need all of them.
func connectedEnv() (*env, *rpcclient.Client, *types.Keypair, *types.Keypair, error) {
	e, err := loadEnv()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	client, err := e.client()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	authority, payer, err := e.signers()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return e, client, authority, payer, nil
}

// findSegment returns the planned segment in the given slot.
func findSegment(e *env, slot uint8) (segments.Segment, error) {
	for _, seg := range e.plan.Segments {
		if seg.Slot == slot {
			return seg, nil
		}
	}
	return segments.Segment{}, fmt.Errorf("no segment in slot %d", slot)
}

// parseRecipient parses a recipient pubkey, defaulting when empty.
func parseRecipient(raw string, fallback types.Pubkey) (types.Pubkey, error) {
	if raw == "" {
		return fallback, nil
	}
	return types.PubkeyFromBase58(raw)
}

// submit sends the instructions as one transaction and waits for the
// configured commitment.
func submit(ctx context.Context, client *rpcclient.Client, payer, authority *types.Keypair, instructions ...tx.Instruction) (types.Signature, error) {
	blockhash, _, err := client.GetLatestBlockhash(ctx, flags.commitment)
	if err != nil {
		return types.Signature{}, err
	}
	txn, err := tx.NewTransaction(instructions, payer.Pubkey(), blockhash)
	if err != nil {
		return types.Signature{}, err
	}
	if err := txn.Sign(payer, authority); err != nil {
		return types.Signature{}, err
	}
	encoded, err := txn.Base64()
	if err != nil {
		return types.Signature{}, err
	}
	sig, err := client.SendTransaction(ctx, encoded, flags.commitment)
	if err != nil {
		return types.Signature{}, err
	}
	if _, err := client.WaitForSignature(ctx, sig, flags.commitment, 90*time.Second); err != nil {
		return types.Signature{}, err
	}
	return sig, nil
}
