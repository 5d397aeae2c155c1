package system

import (
	"soltick/pkg/account"
	"soltick/pkg/errors"
	"soltick/pkg/runtime"
	"soltick/pkg/serializer"
	"soltick/pkg/types"
)

// ProgramID is the system program. It is also the owner of every plain wallet account.
var ProgramID = types.Pubkey{}

// NativeLoaderID owns the executable accounts of built-in programs.
var NativeLoaderID = types.PubkeyFromSeed("NativeLoader1111111111111111111111111111111")

// InstructionType identifies a system instruction; it is encoded as a 4-byte tag.
type InstructionType uint32

const (
	InstructionCreateAccount InstructionType = 0
	InstructionAssign        InstructionType = 1
	InstructionTransfer      InstructionType = 2
)

type CreateAccountArgs struct {
	Lamports types.Lamports
	Space    uint64
	Owner    types.Pubkey
}

type AssignArgs struct {
	Owner types.Pubkey
}

type TransferArgs struct {
	Lamports types.Lamports
}

func encode(t InstructionType, args any) []byte {
	out := serializer.EncodeLittleEndian(4, uint64(t))
	if args != nil {
		out = append(out, serializer.Serialize(args)...)
	}
	return out
}

// CreateAccount funds a new account and assigns it to owner. Both from and to must sign.
func CreateAccount(from, to types.Pubkey, lamports types.Lamports, space uint64, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true),
			types.NewAccountMeta(to, true),
		},
		Data: encode(InstructionCreateAccount, CreateAccountArgs{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// Assign hands a system account over to owner. The account must sign.
func Assign(pubkey, owner types.Pubkey) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(pubkey, true)},
		Data:      encode(InstructionAssign, AssignArgs{Owner: owner}),
	}
}

// Transfer moves lamports between two accounts. from must sign.
func Transfer(from, to types.Pubkey, lamports types.Lamports) types.Instruction {
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true),
			types.NewAccountMeta(to, false),
		},
		Data: encode(InstructionTransfer, TransferArgs{Lamports: lamports}),
	}
}

// Record is the executable account under which the system program is registered.
func Record() account.Record {
	return account.Record{Lamports: 1, Owner: NativeLoaderID, Executable: true, Data: []byte("system_program")}
}

// Program executes system instructions.
type Program struct{}

func (Program) Process(ctx runtime.Context, programID types.Pubkey, accounts []*account.Info, data []byte) error {
	if len(data) < 4 {
		return errors.Errorf(errors.ErrDecode, "system instruction too short")
	}
	payload := data[4:]
	it := account.NewIterator(accounts)

	switch InstructionType(serializer.DecodeLittleEndian(data[:4])) {
	case InstructionCreateAccount:
		var args CreateAccountArgs
		if err := serializer.Deserialize(payload, &args); err != nil {
			return err
		}
		from, err := account.Next(it)
		if err != nil {
			return err
		}
		to, err := account.Next(it)
		if err != nil {
			return err
		}
		return createAccount(ctx, from, to, args)

	case InstructionAssign:
		var args AssignArgs
		if err := serializer.Deserialize(payload, &args); err != nil {
			return err
		}
		acc, err := account.Next(it)
		if err != nil {
			return err
		}
		return assign(ctx, acc, args.Owner)

	case InstructionTransfer:
		var args TransferArgs
		if err := serializer.Deserialize(payload, &args); err != nil {
			return err
		}
		from, err := account.Next(it)
		if err != nil {
			return err
		}
		to, err := account.Next(it)
		if err != nil {
			return err
		}
		return transfer(ctx, from, to, args.Lamports)

	default:
		return errors.Errorf(errors.ErrDecode, "unknown system instruction %d", serializer.DecodeLittleEndian(data[:4]))
	}
}

func createAccount(ctx runtime.Context, from, to *account.Info, args CreateAccountArgs) error {
	if !to.IsSigner {
		ctx.Log("Create Account: account %s must sign", to.Key)
		return errors.Errorf(errors.ErrUnauthorized, "account %s", to.Key)
	}
	if to.Lamports > 0 || len(to.Data) > 0 || to.Owner != ProgramID {
		ctx.Log("Create Account: account %s already in use", to.Key)
		return errors.Errorf(errors.ErrAccountAlreadyInUse, "account %s", to.Key)
	}
	if err := to.Realloc(int(args.Space)); err != nil {
		return err
	}
	if err := assign(ctx, to, args.Owner); err != nil {
		return err
	}
	return transfer(ctx, from, to, args.Lamports)
}

func assign(ctx runtime.Context, acc *account.Info, owner types.Pubkey) error {
	if acc.Owner == owner {
		return nil
	}
	if !acc.IsSigner {
		ctx.Log("Assign: account %s must sign", acc.Key)
		return errors.Errorf(errors.ErrUnauthorized, "account %s", acc.Key)
	}
	acc.Owner = owner
	return nil
}

func transfer(ctx runtime.Context, from, to *account.Info, lamports types.Lamports) error {
	if !from.IsSigner {
		ctx.Log("Transfer: `from` account %s must sign", from.Key)
		return errors.Errorf(errors.ErrUnauthorized, "account %s", from.Key)
	}
	if len(from.Data) > 0 {
		ctx.Log("Transfer: `from` must not carry data")
		return errors.Errorf(errors.ErrInvalidArgument, "account %s carries data", from.Key)
	}
	if from.Lamports < lamports {
		ctx.Log("Transfer: insufficient lamports %d, need %d", from.Lamports, lamports)
		return errors.Errorf(errors.ErrInsufficientFunds, "account %s has %d, needs %d", from.Key, from.Lamports, lamports)
	}
	if to.Lamports+lamports < to.Lamports {
		return errors.Errorf(errors.ErrInvalidArgument, "balance overflow on %s", to.Key)
	}
	from.Lamports -= lamports
	to.Lamports += lamports
	return nil
}
