package types

import (
	"encoding/hex"
	"fmt"

	"soltick/pkg/constants"

	"golang.org/x/crypto/blake2b"
)

type Pubkey [constants.PubkeySize]byte

// String returns the lowercase hex form of the key.
func (p Pubkey) String() string {
	return hex.EncodeToString(p[:])
}

// IsZero reports whether p is the default (all-zero) key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// PubkeyFromString parses a 64-character hex key, with or without a 0x prefix.
func PubkeyFromString(s string) (Pubkey, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("invalid pubkey %q: %w", s, err)
	}
	if len(b) != constants.PubkeySize {
		return Pubkey{}, fmt.Errorf("invalid pubkey length: expected %d bytes, got %d", constants.PubkeySize, len(b))
	}
	return Pubkey(b), nil
}

// PubkeyFromSeed derives a well-known identity from a name.
func PubkeyFromSeed(seed string) Pubkey {
	return Pubkey(blake2b.Sum256([]byte(seed)))
}

type Signature [constants.SignatureSize]byte

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

func SignatureFromString(s string) (Signature, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	if len(b) != constants.SignatureSize {
		return Signature{}, fmt.Errorf("invalid signature length: expected %d bytes, got %d", constants.SignatureSize, len(b))
	}
	return Signature(b), nil
}

type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Lamports is the ledger's native value unit.
type Lamports uint64

type Slot uint64

// AccountMeta describes how an instruction uses one account.
type AccountMeta struct {
	Pubkey     Pubkey
	IsSigner   bool
	IsWritable bool
}

func NewAccountMeta(pubkey Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: true}
}

func NewReadonlyAccountMeta(pubkey Pubkey, isSigner bool) AccountMeta {
	return AccountMeta{Pubkey: pubkey, IsSigner: isSigner, IsWritable: false}
}

// Instruction is a single program call, before it is compiled into a message.
type Instruction struct {
	ProgramID Pubkey
	Accounts  []AccountMeta
	Data      []byte
}
