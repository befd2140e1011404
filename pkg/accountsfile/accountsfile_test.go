package accountsfile

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/frostbite-labs/frostbite-go/internal/types"
	"github.com/frostbite-labs/frostbite-go/pkg/derive"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeKeypair writes a solana-keygen style JSON keypair and returns
// its path and public key.
func writeKeypair(t *testing.T, dir, name string, fill byte) (string, types.Pubkey) {
	t.Helper()
	seed := bytes.Repeat([]byte{fill}, ed25519.SeedSize)
	priv := ed25519.NewKeyFromSeed(seed)
	ints := make([]int, len(priv))
	for i, b := range priv {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, name, string(raw))
	kp, err := types.KeypairFromBytes(priv)
	if err != nil {
		t.Fatal(err)
	}
	return path, kp.Pubkey()
}

func TestLoadAndPlan(t *testing.T) {
	dir := t.TempDir()
	_, authority := writeKeypair(t, dir, "authority.json", 3)

	content := `
[cluster]
rpc_url = "http://localhost:8899"

[vm]
seed = "1234567890123456789"
authority = "` + authority.String() + `"
authority_keypair = "authority.json"

[[segments]]
kind = "weights"
slot = 1
writable = false
bytes = 1048576

[[segments]]
kind = "ram"
slot = 2
writable = true
bytes = 65536
`
	path := writeFile(t, dir, "accounts.toml", content)
	d, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.Cluster.RPCURL != "http://localhost:8899" {
		t.Errorf("rpc_url = %q", d.Cluster.RPCURL)
	}
	seed, err := d.Seed()
	if err != nil || seed != 1234567890123456789 {
		t.Fatalf("seed = %d, %v", seed, err)
	}

	plan, err := d.Plan()
	if err != nil {
		t.Fatal(err)
	}
	if plan.Authority != authority {
		t.Errorf("authority = %s, want %s", plan.Authority, authority)
	}
	if plan.ProgramID != types.DefaultProgramAddr {
		t.Errorf("program id = %s, want default", plan.ProgramID)
	}
	wantVM, _ := derive.VMAddress(authority, seed, types.DefaultProgramAddr)
	if plan.VM != wantVM {
		t.Errorf("vm = %s, want %s", plan.VM, wantVM)
	}
	if len(plan.Segments) != 2 || plan.Segments[0].Kind != derive.KindWeights {
		t.Errorf("segments = %+v", plan.Segments)
	}
}

func TestSeedForms(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		toml string
		want uint64
	}{
		{"integer", `seed = 42`, 42},
		{"decimal string", `seed = "18446744073709551615"`, 18446744073709551615},
		{"hex string", `seed = "0x112210f47de98115"`, 1234567890123456789},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".toml", "[vm]\n"+tt.toml+"\n")
			d, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			seed, err := d.Seed()
			if err != nil {
				t.Fatal(err)
			}
			if seed != tt.want {
				t.Errorf("seed = %d, want %d", seed, tt.want)
			}
		})
	}
}

func TestSeedRejections(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(writeFile(t, dir, "neg.toml", "[vm]\nseed = -1\n")); !errors.Is(err, ErrNegativeSeed) {
		t.Errorf("negative seed: got %v", err)
	}
	if _, err := Load(writeFile(t, dir, "none.toml", "[vm]\npubkey = \"x\"\n")); !errors.Is(err, ErrMissingSeed) {
		t.Errorf("missing seed: got %v", err)
	}
	if _, err := Load(writeFile(t, dir, "float.toml", "[vm]\nseed = 1.5\n")); !errors.Is(err, ErrBadSeedType) {
		t.Errorf("float seed: got %v", err)
	}
}

// A seed above 2^63 must survive load, save and reload byte-exact.
func TestSaveRoundTripHugeSeed(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "accounts.toml", `
[vm]
seed = "18446744073709551615"

[[segments]]
kind = "weights"
slot = 1
writable = false
`)
	d, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	saved := filepath.Join(dir, "saved.toml")
	if err := d.Save(saved); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(saved)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `'18446744073709551615'`) &&
		!strings.Contains(string(raw), `"18446744073709551615"`) {
		t.Errorf("seed not written as decimal string:\n%s", raw)
	}

	reloaded, err := Load(saved)
	if err != nil {
		t.Fatal(err)
	}
	seed, err := reloaded.Seed()
	if err != nil || seed != 18446744073709551615 {
		t.Errorf("reloaded seed = %d, %v", seed, err)
	}
	if len(reloaded.Segments) != 1 || reloaded.Segments[0].Kind != "weights" {
		t.Errorf("segments lost in round trip: %+v", reloaded.Segments)
	}
}

func TestResolveAuthority(t *testing.T) {
	dir := t.TempDir()
	_, authority := writeKeypair(t, dir, "authority.json", 5)

	d, err := Load(writeFile(t, dir, "a.toml", `
[vm]
seed = 1
authority = "`+authority.String()+`"
authority_keypair = "authority.json"
`))
	if err != nil {
		t.Fatal(err)
	}
	kp, err := d.ResolveAuthority()
	if err != nil {
		t.Fatal(err)
	}
	if kp.Pubkey() != authority {
		t.Errorf("authority = %s, want %s", kp.Pubkey(), authority)
	}

	// Pinned authority that does not match the keypair is rejected.
	other := types.MustPubkeyFromBase58("4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw")
	d2, err := Load(writeFile(t, dir, "b.toml", `
[vm]
seed = 1
authority = "`+other.String()+`"
authority_keypair = "authority.json"
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d2.ResolveAuthority(); !errors.Is(err, ErrAuthorityMismatch) {
		t.Errorf("got %v, want ErrAuthorityMismatch", err)
	}

	d3, err := Load(writeFile(t, dir, "c.toml", "[vm]\nseed = 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d3.ResolveAuthority(); !errors.Is(err, ErrMissingAuthorityKeypair) {
		t.Errorf("got %v, want ErrMissingAuthorityKeypair", err)
	}
}

func TestPlanPinnedVMPubkeyMismatch(t *testing.T) {
	dir := t.TempDir()
	_, authority := writeKeypair(t, dir, "authority.json", 5)

	d, err := Load(writeFile(t, dir, "a.toml", `
[vm]
seed = 1
authority = "`+authority.String()+`"
pubkey = "4wBqpZM9xaSheZzJSMawUKKwhdpChKbZ5eu5ky4Vigw"

[[segments]]
kind = "weights"
slot = 1
writable = false
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Plan(); !errors.Is(err, ErrVMPubkeyMismatch) {
		t.Errorf("got %v, want ErrVMPubkeyMismatch", err)
	}
}

func TestResolvePathRelative(t *testing.T) {
	dir := t.TempDir()
	d, err := Load(writeFile(t, dir, "a.toml", "[vm]\nseed = 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := d.ResolvePath("keys/payer.json")
	want := filepath.Join(dir, "keys", "payer.json")
	if got != want {
		t.Errorf("ResolvePath = %q, want %q", got, want)
	}
	abs := filepath.Join(dir, "x.json")
	if d.ResolvePath(abs) != abs {
		t.Error("absolute path must pass through")
	}
}

func TestLoadPayerFallsBackToAuthority(t *testing.T) {
	dir := t.TempDir()
	_, authority := writeKeypair(t, dir, "authority.json", 5)
	d, err := Load(writeFile(t, dir, "a.toml", `
[vm]
seed = 1
authority_keypair = "authority.json"
`))
	if err != nil {
		t.Fatal(err)
	}
	payer, err := d.LoadPayer()
	if err != nil {
		t.Fatal(err)
	}
	if payer.Pubkey() != authority {
		t.Errorf("payer = %s, want authority %s", payer.Pubkey(), authority)
	}
}
