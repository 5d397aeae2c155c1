package account

import (
	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/types"
)

// Record is the persisted form of an account.
type Record struct {
	Lamports   types.Lamports
	Owner      types.Pubkey
	Executable bool
	Data       []byte
}

// Info is the view of one account handed to a program for the duration of an
// instruction. The same *Info is shared with every cross-program invocation that
// references the account, so mutations by a callee are visible to its caller.
type Info struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	Lamports   types.Lamports
	Data       []byte
	Executable bool
	IsSigner   bool
	IsWritable bool

	// originalLen is the data length at the start of the instruction; growth is
	// bounded relative to it.
	originalLen int
}

// NewInfo builds an Info from a stored record.
func NewInfo(key types.Pubkey, rec Record, isSigner, isWritable bool) *Info {
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	return &Info{
		Key:         key,
		Owner:       rec.Owner,
		Lamports:    rec.Lamports,
		Data:        data,
		Executable:  rec.Executable,
		IsSigner:    isSigner,
		IsWritable:  isWritable,
		originalLen: len(data),
	}
}

// Record returns a detached copy of the account's persisted fields.
func (a *Info) Record() Record {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return Record{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
		Data:       data,
	}
}

// Realloc resizes the account data to n bytes. New bytes are zeroed. Only the owning
// program may do this; the runtime checks ownership after the instruction returns.
func (a *Info) Realloc(n int) error {
	if n < 0 || n > constants.MaxPermittedDataLength {
		return errors.Errorf(errors.ErrInvalidRealloc, "requested length %d out of range", n)
	}
	if n > a.originalLen+constants.MaxPermittedDataIncrease {
		return errors.Errorf(errors.ErrInvalidRealloc, "growth from %d to %d exceeds %d bytes", a.originalLen, n, constants.MaxPermittedDataIncrease)
	}
	if n <= cap(a.Data) {
		old := len(a.Data)
		a.Data = a.Data[:n]
		for i := old; i < n; i++ {
			a.Data[i] = 0
		}
		return nil
	}
	data := make([]byte, n)
	copy(data, a.Data)
	a.Data = data
	return nil
}

// Iterator walks an ordered account list.
type Iterator struct {
	accounts []*Info
	pos      int
}

func NewIterator(accounts []*Info) *Iterator {
	return &Iterator{accounts: accounts}
}

// Next returns the next account, or ErrNotEnoughAccountKeys when the list is exhausted.
func Next(it *Iterator) (*Info, error) {
	if it.pos >= len(it.accounts) {
		return nil, errors.Errorf(errors.ErrNotEnoughAccountKeys, "expected at least %d accounts", it.pos+1)
	}
	a := it.accounts[it.pos]
	it.pos++
	return a, nil
}

// Find returns the account with the given key.
func Find(accounts []*Info, key types.Pubkey) (*Info, bool) {
	for _, a := range accounts {
		if a.Key == key {
			return a, true
		}
	}
	return nil, false
}
