// Package tx builds, signs and serializes legacy wire-format
// transactions for the ledger.
//
// A transaction is a compact-u16 array of ed25519 signatures followed
// by a message: a three-byte header, the deduplicated account table,
// the recent blockhash and the instruction list. Account table order
// is writable signers, read-only signers, writable non-signers,
// read-only non-signers, with the fee payer always first.
package tx

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/frostbite-labs/frostbite-go/internal/types"
)

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	Pubkey   types.Pubkey
	Signer   bool
	Writable bool
}

// Instruction is a single program invocation.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Transaction is a built message plus its signature slots.
type Transaction struct {
	Signatures []types.Signature
	Message    Message
}

// Message is the signed portion of a transaction.
type Message struct {
	NumRequiredSignatures uint8
	NumReadonlySigned     uint8
	NumReadonlyUnsigned   uint8
	AccountKeys           []types.Pubkey
	RecentBlockhash       types.Hash
	Instructions          []compiledInstruction
}

type compiledInstruction struct {
	ProgramIDIndex uint8
	AccountIndexes []uint8
	Data           []byte
}

// NewTransaction compiles instructions into a legacy message. The payer
// is forced to be the first writable signer.
func NewTransaction(instructions []Instruction, payer types.Pubkey, blockhash types.Hash) (*Transaction, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if payer.IsZero() {
		return nil, ErrNoPayer
	}

	// Merge the strongest privileges seen for each key.
	type privileges struct {
		signer   bool
		writable bool
	}
	privs := map[types.Pubkey]*privileges{
		payer: {signer: true, writable: true},
	}
	order := []types.Pubkey{payer}
	touch := func(key types.Pubkey, signer, writable bool) {
		p, ok := privs[key]
		if !ok {
			p = &privileges{}
			privs[key] = p
			order = append(order, key)
		}
		p.signer = p.signer || signer
		p.writable = p.writable || writable
	}
	for _, ins := range instructions {
		for _, meta := range ins.Accounts {
			touch(meta.Pubkey, meta.Signer, meta.Writable)
		}
		touch(ins.ProgramID, false, false)
	}

	// Stable partition into the four privilege classes, preserving first
	// appearance order within each class. The payer leads the first class.
	var writableSigners, readonlySigners, writableOthers, readonlyOthers []types.Pubkey
	for _, key := range order {
		p := privs[key]
		switch {
		case p.signer && p.writable:
			writableSigners = append(writableSigners, key)
		case p.signer:
			readonlySigners = append(readonlySigners, key)
		case p.writable:
			writableOthers = append(writableOthers, key)
		default:
			readonlyOthers = append(readonlyOthers, key)
		}
	}

	keys := make([]types.Pubkey, 0, len(order))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableOthers...)
	keys = append(keys, readonlyOthers...)
	if len(keys) > 256 {
		return nil, fmt.Errorf("%w: %d account keys", ErrTooManyAccounts, len(keys))
	}

	index := make(map[types.Pubkey]uint8, len(keys))
	for i, key := range keys {
		index[key] = uint8(i)
	}

	compiled := make([]compiledInstruction, len(instructions))
	for i, ins := range instructions {
		idxs := make([]uint8, len(ins.Accounts))
		for j, meta := range ins.Accounts {
			idxs[j] = index[meta.Pubkey]
		}
		compiled[i] = compiledInstruction{
			ProgramIDIndex: index[ins.ProgramID],
			AccountIndexes: idxs,
			Data:           ins.Data,
		}
	}

	numSigners := len(writableSigners) + len(readonlySigners)
	msg := Message{
		NumRequiredSignatures: uint8(numSigners),
		NumReadonlySigned:     uint8(len(readonlySigners)),
		NumReadonlyUnsigned:   uint8(len(readonlyOthers)),
		AccountKeys:           keys,
		RecentBlockhash:       blockhash,
		Instructions:          compiled,
	}
	return &Transaction{
		Signatures: make([]types.Signature, numSigners),
		Message:    msg,
	}, nil
}

// Serialize encodes the message in legacy wire format.
func (m *Message) Serialize() []byte {
	var buf bytes.Buffer
	buf.WriteByte(m.NumRequiredSignatures)
	buf.WriteByte(m.NumReadonlySigned)
	buf.WriteByte(m.NumReadonlyUnsigned)
	writeCompactU16(&buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf.Write(key[:])
	}
	buf.Write(m.RecentBlockhash[:])
	writeCompactU16(&buf, len(m.Instructions))
	for _, ins := range m.Instructions {
		buf.WriteByte(ins.ProgramIDIndex)
		writeCompactU16(&buf, len(ins.AccountIndexes))
		buf.Write(ins.AccountIndexes)
		writeCompactU16(&buf, len(ins.Data))
		buf.Write(ins.Data)
	}
	return buf.Bytes()
}

// Sign fills the signature slots. Every required signer must be present
// among the keypairs; extra keypairs are ignored.
func (t *Transaction) Sign(keypairs ...*types.Keypair) error {
	msg := t.Message.Serialize()
	byPub := make(map[types.Pubkey]*types.Keypair, len(keypairs))
	for _, kp := range keypairs {
		byPub[kp.Pubkey()] = kp
	}
	for i := 0; i < int(t.Message.NumRequiredSignatures); i++ {
		key := t.Message.AccountKeys[i]
		kp, ok := byPub[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, key)
		}
		t.Signatures[i] = kp.Sign(msg)
	}
	return nil
}

// Serialize encodes the full signed transaction.
func (t *Transaction) Serialize() ([]byte, error) {
	for i, sig := range t.Signatures {
		if sig.IsZero() {
			return nil, fmt.Errorf("%w: slot %d", ErrUnsigned, i)
		}
	}
	var buf bytes.Buffer
	writeCompactU16(&buf, len(t.Signatures))
	for _, sig := range t.Signatures {
		buf.Write(sig[:])
	}
	buf.Write(t.Message.Serialize())
	return buf.Bytes(), nil
}

// Base64 serializes the transaction and encodes it for sendTransaction.
func (t *Transaction) Base64() (string, error) {
	raw, err := t.Serialize()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// writeCompactU16 writes a shortvec length prefix.
func writeCompactU16(buf *bytes.Buffer, v int) {
	rem := uint16(v)
	for {
		b := byte(rem & 0x7F)
		rem >>= 7
		if rem == 0 {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}
