package transaction

import (
	"crypto/ed25519"
	"fmt"

	"soltick/pkg/errors"
	"soltick/pkg/serializer"
	"soltick/pkg/types"
)

type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction refers to accounts by their index in Message.AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// Message is the signed part of a transaction. AccountKeys are ordered: writable
// signers, read-only signers, writable non-signers, read-only non-signers.
type Message struct {
	Header       MessageHeader
	AccountKeys  []types.Pubkey
	RecentHash   types.Hash
	Instructions []CompiledInstruction
}

type Transaction struct {
	Signatures []types.Signature
	Message    Message
}

type keyMeta struct {
	key        types.Pubkey
	isSigner   bool
	isWritable bool
}

// NewMessage compiles instructions into a message paid for by payer.
func NewMessage(payer types.Pubkey, recentHash types.Hash, instructions ...types.Instruction) (Message, error) {
	metas := []*keyMeta{{key: payer, isSigner: true, isWritable: true}}
	index := map[types.Pubkey]*keyMeta{payer: metas[0]}
	add := func(key types.Pubkey, isSigner, isWritable bool) {
		m, ok := index[key]
		if !ok {
			m = &keyMeta{key: key}
			index[key] = m
			metas = append(metas, m)
		}
		m.isSigner = m.isSigner || isSigner
		m.isWritable = m.isWritable || isWritable
	}
	for _, ix := range instructions {
		for _, a := range ix.Accounts {
			add(a.Pubkey, a.IsSigner, a.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}
	if len(metas) > 256 {
		return Message{}, fmt.Errorf("too many accounts: %d", len(metas))
	}

	var ordered []*keyMeta
	for _, class := range []struct{ signer, writable bool }{{true, true}, {true, false}, {false, true}, {false, false}} {
		for _, m := range metas {
			if m.isSigner == class.signer && m.isWritable == class.writable {
				ordered = append(ordered, m)
			}
		}
	}

	msg := Message{RecentHash: recentHash}
	position := make(map[types.Pubkey]uint8, len(ordered))
	for i, m := range ordered {
		msg.AccountKeys = append(msg.AccountKeys, m.key)
		position[m.key] = uint8(i)
		switch {
		case m.isSigner:
			msg.Header.NumRequiredSignatures++
			if !m.isWritable {
				msg.Header.NumReadonlySignedAccounts++
			}
		case !m.isWritable:
			msg.Header.NumReadonlyUnsignedAccounts++
		}
	}

	for _, ix := range instructions {
		ci := CompiledInstruction{ProgramIDIndex: position[ix.ProgramID], Data: ix.Data}
		for _, a := range ix.Accounts {
			ci.Accounts = append(ci.Accounts, position[a.Pubkey])
		}
		msg.Instructions = append(msg.Instructions, ci)
	}
	return msg, nil
}

func (m Message) Serialize() []byte {
	return serializer.Serialize(m)
}

func (m Message) IsSigner(i int) bool {
	return i < int(m.Header.NumRequiredSignatures)
}

func (m Message) IsWritable(i int) bool {
	signers := int(m.Header.NumRequiredSignatures)
	if i < signers {
		return i < signers-int(m.Header.NumReadonlySignedAccounts)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsignedAccounts)
}

// Sanitize checks the message is internally consistent.
func (m Message) Sanitize() error {
	h := m.Header
	if h.NumRequiredSignatures == 0 {
		return errors.Errorf(errors.ErrInvalidTransaction, "no fee payer")
	}
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > len(m.AccountKeys) {
		return errors.Errorf(errors.ErrInvalidTransaction, "header counts exceed %d account keys", len(m.AccountKeys))
	}
	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return errors.Errorf(errors.ErrInvalidTransaction, "fee payer must be writable")
	}
	seen := make(map[types.Pubkey]struct{}, len(m.AccountKeys))
	for _, k := range m.AccountKeys {
		if _, dup := seen[k]; dup {
			return errors.Errorf(errors.ErrInvalidTransaction, "duplicate account key %s", k)
		}
		seen[k] = struct{}{}
	}
	for i, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) >= len(m.AccountKeys) || ix.ProgramIDIndex == 0 {
			return errors.Errorf(errors.ErrInvalidTransaction, "instruction %d: invalid program index %d", i, ix.ProgramIDIndex)
		}
		for _, a := range ix.Accounts {
			if int(a) >= len(m.AccountKeys) {
				return errors.Errorf(errors.ErrInvalidTransaction, "instruction %d: account index %d out of range", i, a)
			}
		}
	}
	return nil
}

// New builds and signs a transaction. The first signer is the fee payer; every
// account marked as signer in instructions must have its key among signers.
func New(recentHash types.Hash, signers []ed25519.PrivateKey, instructions ...types.Instruction) (Transaction, error) {
	if len(signers) == 0 {
		return Transaction{}, fmt.Errorf("at least one signer required")
	}
	msg, err := NewMessage(PubkeyOf(signers[0]), recentHash, instructions...)
	if err != nil {
		return Transaction{}, err
	}
	tx := Transaction{Message: msg}
	if err := tx.Sign(signers...); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// Sign fills in one signature per required signer.
func (tx *Transaction) Sign(keys ...ed25519.PrivateKey) error {
	byKey := make(map[types.Pubkey]ed25519.PrivateKey, len(keys))
	for _, k := range keys {
		byKey[PubkeyOf(k)] = k
	}
	payload := tx.Message.Serialize()
	n := int(tx.Message.Header.NumRequiredSignatures)
	tx.Signatures = make([]types.Signature, n)
	for i := 0; i < n; i++ {
		key, ok := byKey[tx.Message.AccountKeys[i]]
		if !ok {
			return fmt.Errorf("missing private key for signer %s", tx.Message.AccountKeys[i])
		}
		copy(tx.Signatures[i][:], ed25519.Sign(key, payload))
	}
	return nil
}

// Verify checks that every required signer signed the message.
func (tx Transaction) Verify() error {
	if err := tx.Message.Sanitize(); err != nil {
		return err
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != n {
		return errors.Errorf(errors.ErrSignatureFailure, "expected %d signatures, got %d", n, len(tx.Signatures))
	}
	payload := tx.Message.Serialize()
	for i := 0; i < n; i++ {
		pub := tx.Message.AccountKeys[i]
		if !ed25519.Verify(ed25519.PublicKey(pub[:]), payload, tx.Signatures[i][:]) {
			return errors.Errorf(errors.ErrSignatureFailure, "signer %s", pub)
		}
	}
	return nil
}

// ID is the fee payer's signature, which identifies the transaction.
func (tx Transaction) ID() types.Signature {
	if len(tx.Signatures) == 0 {
		return types.Signature{}
	}
	return tx.Signatures[0]
}

func (tx Transaction) Serialize() []byte {
	return serializer.Serialize(tx)
}

func Deserialize(data []byte) (Transaction, error) {
	var tx Transaction
	if err := serializer.Deserialize(data, &tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

func PubkeyOf(key ed25519.PrivateKey) types.Pubkey {
	return types.Pubkey(key.Public().(ed25519.PublicKey))
}
