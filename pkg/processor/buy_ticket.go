package processor

import (
	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/runtime"
	"soltick/pkg/state"
	"soltick/pkg/system"
	"soltick/pkg/types"
)

// buyTicket sells one ticket: the buyer pays the event price to the organizer.
//
// Accounts:
//  0. [signer, writable] buyer
//  1. [writable] event storage
//  2. [writable] organizer, must match the stored organizer
//  3. [] system program
func buyTicket(ctx runtime.Context, programID types.Pubkey, accounts []*account.Info) error {
	it := account.NewIterator(accounts)
	buyer, err := account.Next(it)
	if err != nil {
		return err
	}
	storage, err := account.Next(it)
	if err != nil {
		return err
	}
	organizer, err := account.Next(it)
	if err != nil {
		return err
	}
	systemProgram, err := account.Next(it)
	if err != nil {
		return err
	}

	if !buyer.IsSigner {
		ctx.Log("Buyer account must be the signer")
		return errors.ErrUnauthorized
	}

	if storage.Owner != programID {
		ctx.Log("Event account is not owned by the program")
		return errors.ErrWrongOwner
	}

	event, err := state.DecodeEvent(storage.Data)
	if err != nil {
		ctx.Log("Event account data is malformed")
		return err
	}

	if event.Organizer != organizer.Key {
		ctx.Log("Incorrect organizer account provided")
		return errors.ErrInvalidArgument
	}

	if event.IsSoldOut() {
		ctx.Log("Event is sold out: %d of %d tickets sold", event.TicketsSold, event.TicketsTotal)
		return errors.ErrSoldOut
	}

	ix := system.Transfer(buyer.Key, organizer.Key, types.Lamports(event.Price))
	if err := ctx.Invoke(ix, []*account.Info{buyer, organizer, systemProgram}); err != nil {
		return err
	}

	event.TicketsSold++
	if err := event.Store(storage.Data); err != nil {
		return err
	}

	remaining, err := event.Remaining()
	if err != nil {
		return err
	}
	ctx.Log("Ticket purchased successfully by %s", buyer.Key)
	ctx.Log("Tickets remaining: %d", remaining)
	return nil
}
