package ledger

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"sync"

	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/runtime"
	"soltick/pkg/serializer"
	"soltick/pkg/system"
	"soltick/pkg/transaction"
	"soltick/pkg/types"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"
)

// MaxRecentHashes is how many recent bank hashes a transaction may reference.
const MaxRecentHashes = 150

// StatusError is the persisted form of a failed transaction's error.
type StatusError struct {
	Code    errors.Code
	Message string
}

// Status is the outcome of a processed transaction.
type Status struct {
	Slot types.Slot
	Err  *StatusError
	Logs []string
}

// Failure returns the transaction's error as a ProgramError, or nil on success.
func (s Status) Failure() error {
	if s.Err == nil {
		return nil
	}
	return errors.FromCode(s.Err.Code, s.Err.Message)
}

// Bank executes transactions against the account store. Every transaction is applied
// atomically: all of its instructions' effects are committed in a single batch, or
// none are.
type Bank struct {
	store    *Store
	programs map[types.Pubkey]runtime.Program

	mu sync.Mutex
}

func NewBank(store *Store, programs map[types.Pubkey]runtime.Program) *Bank {
	return &Bank{store: store, programs: programs}
}

// ProcessTransaction verifies, executes and records tx. A transaction whose
// instructions fail is still recorded, with its error in the status and no account
// changes. The returned error is set only when tx was rejected before execution or
// the store failed.
func (b *Bank) ProcessTransaction(tx transaction.Transaction) (Status, error) {
	if err := tx.Verify(); err != nil {
		return Status{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.store.newTx()
	defer batch.Close()

	id := tx.ID()
	if _, exists, err := getStatus(batch, id); err != nil {
		return Status{}, err
	} else if exists {
		return Status{}, errors.Errorf(errors.ErrDuplicateTransaction, "%s", id)
	}

	m, err := getMeta(batch)
	if err != nil {
		return Status{}, err
	}
	if !containsHash(m.RecentHashes, tx.Message.RecentHash) {
		return Status{}, errors.Errorf(errors.ErrInvalidTransaction, "recent hash %s not found", tx.Message.RecentHash)
	}

	infos, err := b.loadAccounts(batch, tx.Message)
	if err != nil {
		return Status{}, err
	}

	var logs bytes.Buffer
	execErr := b.execute(tx.Message, infos, &logs)
	if execErr != nil && !errors.IsProgramError(execErr) {
		return Status{}, execErr
	}

	m.Slot++
	status := Status{Slot: m.Slot, Logs: splitLogs(logs.String())}

	h, _ := blake2b.New256(nil)
	h.Write(m.BankHash[:])
	h.Write(id[:])
	if execErr != nil {
		code, _ := errors.CodeOf(execErr)
		status.Err = &StatusError{Code: code, Message: execErr.Error()}
		h.Write(serializer.Serialize(*status.Err))
	} else {
		for i, info := range infos {
			if !tx.Message.IsWritable(i) {
				continue
			}
			rec := info.Record()
			if err := setAccount(batch, info.Key, rec); err != nil {
				return Status{}, err
			}
			h.Write(info.Key[:])
			h.Write(serializer.Serialize(rec))
		}
	}
	copy(m.BankHash[:], h.Sum(nil))
	m.RecentHashes = pushHash(m.RecentHashes, m.BankHash)

	if err := setStatus(batch, id, status); err != nil {
		return Status{}, err
	}
	if err := setMeta(batch, m); err != nil {
		return Status{}, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return Status{}, fmt.Errorf("failed to commit transaction %s: %w", id, err)
	}

	if execErr != nil {
		log.Printf("Transaction %s failed in slot %d: %v", id, m.Slot, execErr)
	} else {
		log.Printf("Transaction %s succeeded in slot %d", id, m.Slot)
	}
	return status, nil
}

// loadAccounts builds one Info per message key with the privileges the message grants.
func (b *Bank) loadAccounts(r pebble.Reader, msg transaction.Message) ([]*account.Info, error) {
	infos := make([]*account.Info, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		rec, ok, err := getAccount(r, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			rec = account.Record{Owner: system.ProgramID}
		}
		infos[i] = account.NewInfo(key, rec, msg.IsSigner(i), msg.IsWritable(i))
	}
	return infos, nil
}

func (b *Bank) execute(msg transaction.Message, infos []*account.Info, logs *bytes.Buffer) error {
	inv := runtime.NewInvoker(b.programs, logs)
	for n, ci := range msg.Instructions {
		program := infos[ci.ProgramIDIndex]
		if !program.Executable {
			return errors.Errorf(errors.ErrUnsupportedProgram, "instruction %d: account %s is not executable", n, program.Key)
		}
		accounts := make([]*account.Info, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			accounts[j] = infos[idx]
		}
		if err := inv.Execute(program.Key, accounts, ci.Data); err != nil {
			return fmt.Errorf("instruction %d: %w", n, err)
		}
	}
	return nil
}

// GetAccount returns the committed state of an account.
func (b *Bank) GetAccount(key types.Pubkey) (account.Record, bool, error) {
	return getAccount(b.store.db, key)
}

// GetTransaction returns the recorded status of a processed transaction.
func (b *Bank) GetTransaction(sig types.Signature) (Status, bool, error) {
	return getStatus(b.store.db, sig)
}

// ProgramAccounts returns every account owned by owner.
func (b *Bank) ProgramAccounts(owner types.Pubkey) (map[types.Pubkey]account.Record, error) {
	return programAccounts(b.store.db, owner)
}

// RecentHash returns the hash new transactions should reference.
func (b *Bank) RecentHash() (types.Hash, types.Slot, error) {
	m, err := getMeta(b.store.db)
	if err != nil {
		return types.Hash{}, 0, err
	}
	return m.BankHash, m.Slot, nil
}

// Airdrop credits lamports to a wallet account out of thin air.
func (b *Bank) Airdrop(to types.Pubkey, lamports types.Lamports) (types.Lamports, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.store.newTx()
	defer batch.Close()

	rec, ok, err := getAccount(batch, to)
	if err != nil {
		return 0, err
	}
	if !ok {
		rec = account.Record{Owner: system.ProgramID}
	}
	if rec.Lamports+lamports < rec.Lamports {
		return 0, errors.Errorf(errors.ErrInvalidArgument, "balance overflow on %s", to)
	}
	rec.Lamports += lamports
	if err := setAccount(batch, to, rec); err != nil {
		return 0, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	log.Printf("Airdropped %d lamports to %s, balance %d", lamports, to, rec.Lamports)
	return rec.Lamports, nil
}

func splitLogs(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func containsHash(hashes []types.Hash, h types.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}

func pushHash(hashes []types.Hash, h types.Hash) []types.Hash {
	hashes = append(hashes, h)
	if len(hashes) > MaxRecentHashes {
		hashes = hashes[len(hashes)-MaxRecentHashes:]
	}
	return hashes
}
