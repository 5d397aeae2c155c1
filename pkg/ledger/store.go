package ledger

import (
	"fmt"

	"soltick/pkg/account"
	"soltick/pkg/serializer"
	"soltick/pkg/types"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var (
	accountPrefix = []byte("account:")
	txPrefix      = []byte("tx:")

	slotKey         = []byte("meta:slot")
	bankHashKey     = []byte("meta:bankhash")
	recentHashesKey = []byte("meta:recenthashes")
	genesisKey      = []byte("meta:genesis")
)

// Store persists accounts, transaction statuses and bank metadata in PebbleDB.
type Store struct {
	db *pebble.DB
}

// OpenStore opens the store at dbPath. An empty path opens an in-memory store.
func OpenStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{}
	if dbPath == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %q: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// newTx starts a transaction: an indexed batch that sees its own pending writes.
// Commit it to apply, Close it to discard.
func (s *Store) newTx() *pebble.Batch {
	return s.db.NewIndexedBatch()
}

func prefixed(prefix []byte, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

// get reads key and decodes it into target. It reports false when the key is absent.
func get(r pebble.Reader, key []byte, target any) (bool, error) {
	value, closer, err := r.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := serializer.Deserialize(value, target); err != nil {
		return false, fmt.Errorf("corrupt value under %q: %w", key, err)
	}
	return true, nil
}

func set(b *pebble.Batch, key []byte, value any) error {
	return b.Set(key, serializer.Serialize(value), nil)
}

func getAccount(r pebble.Reader, key types.Pubkey) (account.Record, bool, error) {
	var rec account.Record
	ok, err := get(r, prefixed(accountPrefix, key[:]), &rec)
	return rec, ok, err
}

func setAccount(b *pebble.Batch, key types.Pubkey, rec account.Record) error {
	// Accounts drained of lamports and data cease to exist.
	if rec.Lamports == 0 && len(rec.Data) == 0 {
		return b.Delete(prefixed(accountPrefix, key[:]), nil)
	}
	return set(b, prefixed(accountPrefix, key[:]), rec)
}

func getStatus(r pebble.Reader, sig types.Signature) (Status, bool, error) {
	var st Status
	ok, err := get(r, prefixed(txPrefix, sig[:]), &st)
	return st, ok, err
}

func setStatus(b *pebble.Batch, sig types.Signature, st Status) error {
	return set(b, prefixed(txPrefix, sig[:]), st)
}

type meta struct {
	Slot         types.Slot
	BankHash     types.Hash
	RecentHashes []types.Hash
}

func getMeta(r pebble.Reader) (meta, error) {
	var m meta
	if _, err := get(r, slotKey, &m.Slot); err != nil {
		return meta{}, err
	}
	if _, err := get(r, bankHashKey, &m.BankHash); err != nil {
		return meta{}, err
	}
	if _, err := get(r, recentHashesKey, &m.RecentHashes); err != nil {
		return meta{}, err
	}
	return m, nil
}

func setMeta(b *pebble.Batch, m meta) error {
	if err := set(b, slotKey, m.Slot); err != nil {
		return err
	}
	if err := set(b, bankHashKey, m.BankHash); err != nil {
		return err
	}
	return set(b, recentHashesKey, m.RecentHashes)
}

// programAccounts returns every account owned by owner.
func programAccounts(r pebble.Reader, owner types.Pubkey) (map[types.Pubkey]account.Record, error) {
	upper := prefixed(accountPrefix, nil)
	upper[len(upper)-1]++
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: accountPrefix,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[types.Pubkey]account.Record)
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()[len(accountPrefix):]
		if len(key) != len(types.Pubkey{}) {
			continue
		}
		var rec account.Record
		if err := serializer.Deserialize(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt account %x: %w", key, err)
		}
		if rec.Owner == owner {
			out[types.Pubkey(key)] = rec
		}
	}
	return out, iter.Error()
}
