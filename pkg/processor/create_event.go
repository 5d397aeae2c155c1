package processor

import (
	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/instruction"
	"soltick/pkg/runtime"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/sysvar"
	"soltick/pkg/types"
)

// createEvent populates a program-owned storage account with a new Event.
//
// Accounts:
//  0. [signer, writable] organizer, pays for storage
//  1. [writable] event storage, already assigned to this program
//  2. [] rent sysvar
//  3. [] system program
func createEvent(ctx runtime.Context, programID types.Pubkey, accounts []*account.Info, args instruction.CreateEvent) error {
	it := account.NewIterator(accounts)
	organizer, err := account.Next(it)
	if err != nil {
		return err
	}
	storage, err := account.Next(it)
	if err != nil {
		return err
	}
	rentAccount, err := account.Next(it)
	if err != nil {
		return err
	}
	systemProgram, err := account.Next(it)
	if err != nil {
		return err
	}

	if !organizer.IsSigner {
		ctx.Log("Organizer account must be the signer")
		return errors.ErrUnauthorized
	}

	if storage.Owner != programID {
		ctx.Log("Event account is not owned by the program")
		return errors.ErrWrongOwner
	}

	// A storage account that has not been sized yet reads as the zero Event.
	var current state.Event
	if len(storage.Data) > 0 {
		current, err = state.DecodeEvent(storage.Data)
		if err != nil {
			ctx.Log("Event account data is malformed")
			return err
		}
	}
	if current.IsInitialized() {
		ctx.Log("Event account is already initialized")
		return errors.ErrAlreadyInitialized
	}

	rent, err := sysvar.FromAccount(rentAccount)
	if err != nil {
		ctx.Log("Invalid rent sysvar account")
		return err
	}

	span := state.Span()
	minimum := rent.MinimumBalance(span)
	if storage.Lamports < minimum {
		ix := system.Transfer(organizer.Key, storage.Key, minimum-storage.Lamports)
		if err := ctx.Invoke(ix, []*account.Info{organizer, storage, systemProgram}); err != nil {
			return err
		}
	}
	if err := storage.Realloc(span); err != nil {
		return err
	}

	event := state.Event{
		Organizer:    organizer.Key,
		Price:        args.Price,
		TicketsTotal: args.TicketsTotal,
		TicketsSold:  0,
		EventName:    args.EventName,
		EventAddress: args.EventAddress,
	}
	if err := event.Store(storage.Data); err != nil {
		return err
	}

	ctx.Log("Event created for organizer: %s", organizer.Key)
	ctx.Log("Event account address: %s", storage.Key)
	ctx.Log("Price: %d lamports", event.Price)
	ctx.Log("Tickets total: %d", event.TicketsTotal)
	return nil
}
