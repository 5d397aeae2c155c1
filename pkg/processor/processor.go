package processor

import (
	"soltick/pkg/account"
	"soltick/pkg/instruction"
	"soltick/pkg/runtime"
	"soltick/pkg/types"
)

// Process is the program entry point. It decodes data and routes it to the matching
// handler; the account list is handed over unexamined.
func Process(ctx runtime.Context, programID types.Pubkey, accounts []*account.Info, data []byte) error {
	ix, err := instruction.Decode(data)
	if err != nil {
		ctx.Log("Invalid instruction data: %v", err)
		return err
	}

	switch {
	case ix.CreateEvent != nil:
		ctx.Log("Instruction: Create Event")
		return createEvent(ctx, programID, accounts, *ix.CreateEvent)
	default:
		ctx.Log("Instruction: Buy Ticket")
		return buyTicket(ctx, programID, accounts)
	}
}

// Program registers Process with a runtime.Invoker.
var Program runtime.Program = runtime.ProcessFunc(Process)
