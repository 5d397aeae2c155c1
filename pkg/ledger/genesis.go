package ledger

import (
	"log"

	"soltick/pkg/account"
	"soltick/pkg/system"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"
)

// GenesisConfig describes the accounts a fresh ledger starts with.
type GenesisConfig struct {
	Rent sysvar.Rent
	// Programs are registered as executable accounts, keyed by program id, valued by name.
	Programs map[types.Pubkey]string
	Airdrops map[types.Pubkey]types.Lamports
}

// Genesis writes the initial accounts. It is a no-op on a ledger that already has a
// genesis, so it is safe to call on every start.
func (b *Bank) Genesis(cfg GenesisConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.store.newTx()
	defer batch.Close()

	var done bool
	if _, err := get(batch, genesisKey, &done); err != nil {
		return err
	}
	if done {
		log.Printf("Ledger already initialized, skipping genesis")
		return nil
	}

	if err := setAccount(batch, sysvar.RentID, cfg.Rent.Record()); err != nil {
		return err
	}
	if err := setAccount(batch, system.ProgramID, system.Record()); err != nil {
		return err
	}
	for id, name := range cfg.Programs {
		rec := account.Record{Lamports: 1, Owner: system.NativeLoaderID, Executable: true, Data: []byte(name)}
		if err := setAccount(batch, id, rec); err != nil {
			return err
		}
		log.Printf("Genesis: program %s registered at %s", name, id)
	}
	for to, lamports := range cfg.Airdrops {
		if err := setAccount(batch, to, account.Record{Lamports: lamports, Owner: system.ProgramID}); err != nil {
			return err
		}
		log.Printf("Genesis: %d lamports to %s", lamports, to)
	}

	seed := blake2b.Sum256(append([]byte("genesis"), cfg.Rent.Encode()...))
	if err := setMeta(batch, meta{BankHash: seed, RecentHashes: []types.Hash{seed}}); err != nil {
		return err
	}
	if err := set(batch, genesisKey, true); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	log.Printf("Genesis complete, bank hash %x", seed)
	return nil
}
