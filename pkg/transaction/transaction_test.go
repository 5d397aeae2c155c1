package transaction

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"soltick/pkg/errors"
	"soltick/pkg/types"

	"github.com/google/go-cmp/cmp"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return priv
}

func TestNewMessageOrdering(t *testing.T) {
	payer := types.PubkeyFromSeed("payer")
	signer := types.PubkeyFromSeed("signer")
	writable := types.PubkeyFromSeed("writable")
	readonly := types.PubkeyFromSeed("readonly")
	program := types.PubkeyFromSeed("program")

	ix := types.Instruction{
		ProgramID: program,
		Accounts: []types.AccountMeta{
			types.NewReadonlyAccountMeta(readonly, false),
			types.NewAccountMeta(writable, false),
			types.NewReadonlyAccountMeta(signer, true),
			types.NewReadonlyAccountMeta(payer, false),
		},
		Data: []byte{1, 2},
	}
	msg, err := NewMessage(payer, types.Hash{1}, ix)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}

	wantKeys := []types.Pubkey{payer, signer, writable, readonly, program}
	if diff := cmp.Diff(wantKeys, msg.AccountKeys); diff != "" {
		t.Fatalf("account keys mismatch (-want +got):\n%s", diff)
	}
	wantHeader := MessageHeader{NumRequiredSignatures: 2, NumReadonlySignedAccounts: 1, NumReadonlyUnsignedAccounts: 2}
	if diff := cmp.Diff(wantHeader, msg.Header); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}
	wantIx := []CompiledInstruction{{ProgramIDIndex: 4, Accounts: []uint8{3, 2, 1, 0}, Data: []byte{1, 2}}}
	if diff := cmp.Diff(wantIx, msg.Instructions); diff != "" {
		t.Fatalf("instructions mismatch (-want +got):\n%s", diff)
	}

	privileges := []struct{ signer, writable bool }{{true, true}, {true, false}, {false, true}, {false, false}, {false, false}}
	for i, p := range privileges {
		if msg.IsSigner(i) != p.signer || msg.IsWritable(i) != p.writable {
			t.Errorf("key %d: signer=%v writable=%v, want %v %v", i, msg.IsSigner(i), msg.IsWritable(i), p.signer, p.writable)
		}
	}
}

func TestNewMessageMergesPrivileges(t *testing.T) {
	payer := types.PubkeyFromSeed("payer")
	shared := types.PubkeyFromSeed("shared")
	program := types.PubkeyFromSeed("program")

	msg, err := NewMessage(payer, types.Hash{},
		types.Instruction{ProgramID: program, Accounts: []types.AccountMeta{types.NewReadonlyAccountMeta(shared, true)}},
		types.Instruction{ProgramID: program, Accounts: []types.AccountMeta{types.NewAccountMeta(shared, false)}},
	)
	if err != nil {
		t.Fatalf("NewMessage failed: %v", err)
	}
	if len(msg.AccountKeys) != 3 {
		t.Fatalf("expected 3 keys, got %d", len(msg.AccountKeys))
	}
	if msg.AccountKeys[1] != shared || !msg.IsSigner(1) || !msg.IsWritable(1) {
		t.Fatalf("shared key not merged to signer+writable")
	}
}

func TestSignVerify(t *testing.T) {
	payer, other := newKey(t), newKey(t)
	ix := types.Instruction{
		ProgramID: types.PubkeyFromSeed("program"),
		Accounts:  []types.AccountMeta{types.NewAccountMeta(PubkeyOf(other), true)},
	}
	tx, err := New(types.Hash{7}, []ed25519.PrivateKey{payer, other}, ix)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(tx.Signatures) != 2 {
		t.Fatalf("got %d signatures, want 2", len(tx.Signatures))
	}
	if err := tx.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if tx.ID() != tx.Signatures[0] {
		t.Fatalf("ID is not the payer signature")
	}

	decoded, err := Deserialize(tx.Serialize())
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	if err := decoded.Verify(); err != nil {
		t.Fatalf("Verify after round trip failed: %v", err)
	}

	tampered := decoded
	tampered.Message.RecentHash = types.Hash{8}
	if err := tampered.Verify(); !errors.Is(err, errors.ErrSignatureFailure) {
		t.Fatalf("tampered message: got %v, want ErrSignatureFailure", err)
	}

	missing := decoded
	missing.Signatures = missing.Signatures[:1]
	if err := missing.Verify(); !errors.Is(err, errors.ErrSignatureFailure) {
		t.Fatalf("missing signature: got %v, want ErrSignatureFailure", err)
	}
}

func TestSignMissingKey(t *testing.T) {
	payer, other := newKey(t), newKey(t)
	ix := types.Instruction{
		ProgramID: types.PubkeyFromSeed("program"),
		Accounts:  []types.AccountMeta{types.NewAccountMeta(PubkeyOf(other), true)},
	}
	if _, err := New(types.Hash{}, []ed25519.PrivateKey{payer}, ix); err == nil {
		t.Fatalf("expected error when a required signer is missing")
	}
}

func TestSanitize(t *testing.T) {
	a, b, c := types.PubkeyFromSeed("a"), types.PubkeyFromSeed("b"), types.PubkeyFromSeed("c")
	tests := []struct {
		name string
		msg  Message
	}{
		{"no signers", Message{AccountKeys: []types.Pubkey{a}}},
		{"readonly payer", Message{Header: MessageHeader{NumRequiredSignatures: 1, NumReadonlySignedAccounts: 1}, AccountKeys: []types.Pubkey{a}}},
		{"counts exceed keys", Message{Header: MessageHeader{NumRequiredSignatures: 1, NumReadonlyUnsignedAccounts: 2}, AccountKeys: []types.Pubkey{a, b}}},
		{"duplicate keys", Message{Header: MessageHeader{NumRequiredSignatures: 1}, AccountKeys: []types.Pubkey{a, a}}},
		{"program is payer", Message{
			Header:       MessageHeader{NumRequiredSignatures: 1},
			AccountKeys:  []types.Pubkey{a, b},
			Instructions: []CompiledInstruction{{ProgramIDIndex: 0}},
		}},
		{"program index out of range", Message{
			Header:       MessageHeader{NumRequiredSignatures: 1},
			AccountKeys:  []types.Pubkey{a, b},
			Instructions: []CompiledInstruction{{ProgramIDIndex: 2}},
		}},
		{"account index out of range", Message{
			Header:       MessageHeader{NumRequiredSignatures: 1},
			AccountKeys:  []types.Pubkey{a, b, c},
			Instructions: []CompiledInstruction{{ProgramIDIndex: 2, Accounts: []uint8{3}}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Sanitize(); !errors.Is(err, errors.ErrInvalidTransaction) {
				t.Fatalf("got %v, want ErrInvalidTransaction", err)
			}
		})
	}
}
