package runtime

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"soltick/pkg/account"
	"soltick/pkg/constants"
	"soltick/pkg/errors"
	"soltick/pkg/types"
)

// Context is what a running program sees of its host.
type Context interface {
	// Invoke calls another program. Every account named by ix must be among accounts,
	// with at least the privileges ix asks for.
	Invoke(ix types.Instruction, accounts []*account.Info) error
	// Log appends a line to the transaction log.
	Log(format string, args ...any)
}

// Program is executable logic registered under a program id.
type Program interface {
	Process(ctx Context, programID types.Pubkey, accounts []*account.Info, data []byte) error
}

// ProcessFunc adapts an ordinary function to the Program interface.
type ProcessFunc func(ctx Context, programID types.Pubkey, accounts []*account.Info, data []byte) error

func (f ProcessFunc) Process(ctx Context, programID types.Pubkey, accounts []*account.Info, data []byte) error {
	return f(ctx, programID, accounts, data)
}

// snapshot is the state of an account when a frame started, or when it last
// returned from a cross-program invocation.
type snapshot struct {
	lamports   types.Lamports
	owner      types.Pubkey
	data       []byte
	isWritable bool
}

func takeSnapshot(a *account.Info) snapshot {
	data := make([]byte, len(a.Data))
	copy(data, a.Data)
	return snapshot{lamports: a.Lamports, owner: a.Owner, data: data, isWritable: a.IsWritable}
}

type frame struct {
	programID types.Pubkey
	accounts  []*account.Info
	pre       map[types.Pubkey]snapshot
}

// Invoker executes instructions against a registry of programs. It verifies after
// every invocation that the program only changed what it was entitled to change.
// An Invoker is used for a single transaction and is not safe for concurrent use.
type Invoker struct {
	programs map[types.Pubkey]Program
	logger   *log.Logger
	stack    []*frame
}

// NewInvoker creates an invoker. Program logs are written to w.
func NewInvoker(programs map[types.Pubkey]Program, w io.Writer) *Invoker {
	return &Invoker{
		programs: programs,
		logger:   log.New(w, "", 0),
	}
}

func (inv *Invoker) Log(format string, args ...any) {
	inv.logger.Printf("Program log: "+format, args...)
}

// Execute runs a top-level instruction. accounts carry the privileges granted by the
// transaction.
func (inv *Invoker) Execute(programID types.Pubkey, accounts []*account.Info, data []byte) error {
	return inv.run(programID, accounts, data)
}

func (inv *Invoker) run(programID types.Pubkey, accounts []*account.Info, data []byte) error {
	if len(inv.stack) >= constants.MaxInvokeDepth {
		return errors.Errorf(errors.ErrCallDepth, "depth %d", len(inv.stack)+1)
	}
	program, ok := inv.programs[programID]
	if !ok {
		return errors.Errorf(errors.ErrUnsupportedProgram, "program %s", programID)
	}

	f := &frame{programID: programID, accounts: accounts}
	f.snapshot()

	inv.logger.Printf("Program %s invoke [%d]", programID, len(inv.stack)+1)
	inv.stack = append(inv.stack, f)
	err := program.Process(inv, programID, accounts, data)
	inv.stack = inv.stack[:len(inv.stack)-1]
	if err == nil {
		err = verifyFrame(f)
	}
	if err != nil {
		inv.logger.Printf("Program %s failed: %v", programID, err)
		return err
	}
	inv.logger.Printf("Program %s success", programID)
	return nil
}

func (inv *Invoker) Invoke(ix types.Instruction, accounts []*account.Info) error {
	if len(inv.stack) == 0 {
		return fmt.Errorf("invoke called outside of a running program")
	}
	caller := inv.stack[len(inv.stack)-1]

	if _, ok := account.Find(accounts, ix.ProgramID); !ok {
		return errors.Errorf(errors.ErrMissingAccount, "program account %s", ix.ProgramID)
	}

	// Callees work on private copies carrying only the privileges the instruction
	// asks for; results are copied back on success.
	copies := make(map[types.Pubkey]*account.Info, len(ix.Accounts))
	originals := make(map[types.Pubkey]*account.Info, len(ix.Accounts))
	callee := make([]*account.Info, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info, ok := account.Find(accounts, meta.Pubkey)
		if !ok {
			return errors.Errorf(errors.ErrMissingAccount, "account %s", meta.Pubkey)
		}
		if meta.IsSigner && !info.IsSigner {
			return errors.Errorf(errors.ErrPrivilegeEscalation, "account %s is not a signer", meta.Pubkey)
		}
		if meta.IsWritable && !info.IsWritable {
			return errors.Errorf(errors.ErrPrivilegeEscalation, "account %s is not writable", meta.Pubkey)
		}
		c, ok := copies[meta.Pubkey]
		if !ok {
			c = account.NewInfo(info.Key, info.Record(), meta.IsSigner, meta.IsWritable)
			copies[meta.Pubkey] = c
			originals[meta.Pubkey] = info
		} else {
			c.IsSigner = c.IsSigner || meta.IsSigner
			c.IsWritable = c.IsWritable || meta.IsWritable
		}
		callee[i] = c
	}

	// Everything the caller did so far is checked now, balance included, before the
	// callee's changes are mixed in.
	if err := verifyFrame(caller); err != nil {
		return err
	}

	if err := inv.run(ix.ProgramID, callee, ix.Data); err != nil {
		return err
	}

	for key, info := range originals {
		c := copies[key]
		info.Lamports = c.Lamports
		info.Owner = c.Owner
		info.Data = c.Data
	}
	caller.snapshot()
	return nil
}

// snapshot records the current state of every account in f as its new baseline.
func (f *frame) snapshot() {
	f.pre = make(map[types.Pubkey]snapshot, len(f.accounts))
	for _, a := range f.accounts {
		if _, seen := f.pre[a.Key]; !seen {
			f.pre[a.Key] = takeSnapshot(a)
		}
	}
}

func verifyFrame(f *frame) error {
	var preSum, postSum uint64
	seen := make(map[types.Pubkey]struct{}, len(f.accounts))
	for _, a := range f.accounts {
		if _, ok := seen[a.Key]; ok {
			continue
		}
		seen[a.Key] = struct{}{}
		pre := f.pre[a.Key]
		if err := verifyAccount(f.programID, pre, a); err != nil {
			return err
		}
		preSum += uint64(pre.lamports)
		postSum += uint64(a.Lamports)
	}
	if preSum != postSum {
		return errors.Errorf(errors.ErrUnbalancedInstruction, "before %d after %d", preSum, postSum)
	}
	return nil
}

// verifyAccount checks the changes programID made to one account.
func verifyAccount(programID types.Pubkey, pre snapshot, post *account.Info) error {
	if pre.owner != post.Owner {
		if !pre.isWritable || pre.owner != programID || !isZeroed(post.Data) {
			return errors.Errorf(errors.ErrModifiedOwner, "account %s", post.Key)
		}
	}

	if post.Lamports < pre.lamports && pre.owner != programID {
		return errors.Errorf(errors.ErrExternalLamportSpend, "account %s", post.Key)
	}
	if post.Lamports != pre.lamports && !pre.isWritable {
		return errors.Errorf(errors.ErrReadonlyLamportChange, "account %s", post.Key)
	}

	if !bytes.Equal(pre.data, post.Data) {
		if !pre.isWritable {
			return errors.Errorf(errors.ErrReadonlyDataModified, "account %s", post.Key)
		}
		if pre.owner != programID {
			return errors.Errorf(errors.ErrExternalDataModified, "account %s", post.Key)
		}
	}
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
