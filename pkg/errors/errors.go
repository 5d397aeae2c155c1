package errors

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a ProgramError kind. Codes are stable: they are persisted with
// transaction statuses and cross the RPC boundary.
type Code uint32

const (
	CodeUnauthorized          Code = 1
	CodeWrongOwner            Code = 2
	CodeAlreadyInitialized    Code = 3
	CodeInvalidArgument       Code = 4
	CodeDecode                Code = 5
	CodeSoldOut               Code = 6
	CodeNotEnoughAccountKeys  Code = 7
	CodeInsufficientFunds     Code = 100
	CodeAccountAlreadyInUse   Code = 101
	CodePrivilegeEscalation   Code = 102
	CodeExternalDataModified  Code = 103
	CodeExternalLamportSpend  Code = 104
	CodeReadonlyLamportChange Code = 105
	CodeReadonlyDataModified  Code = 106
	CodeUnbalancedInstruction Code = 107
	CodeModifiedOwner         Code = 108
	CodeInvalidRealloc        Code = 109
	CodeUnsupportedProgram    Code = 110
	CodeMissingAccount        Code = 111
	CodeCallDepth             Code = 112
	CodeSignatureFailure      Code = 113
	CodeInvalidTransaction    Code = 114
	CodeDuplicateTransaction  Code = 115
)

// ProgramError is a failure caused by the submitted input (instruction data, account
// list, signatures or balances). It aborts the transaction but not the node.
type ProgramError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *ProgramError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ProgramError) Unwrap() error {
	return e.Cause
}

// Is matches any ProgramError with the same code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	return ok && t.Code == e.Code
}

var (
	ErrUnauthorized         = &ProgramError{Code: CodeUnauthorized, Message: "missing required signature"}
	ErrWrongOwner           = &ProgramError{Code: CodeWrongOwner, Message: "account not owned by program"}
	ErrAlreadyInitialized   = &ProgramError{Code: CodeAlreadyInitialized, Message: "account already initialized"}
	ErrInvalidArgument      = &ProgramError{Code: CodeInvalidArgument, Message: "invalid argument"}
	ErrDecode               = &ProgramError{Code: CodeDecode, Message: "failed to decode"}
	ErrSoldOut              = &ProgramError{Code: CodeSoldOut, Message: "event sold out"}
	ErrNotEnoughAccountKeys = &ProgramError{Code: CodeNotEnoughAccountKeys, Message: "not enough account keys"}

	ErrInsufficientFunds     = &ProgramError{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrAccountAlreadyInUse   = &ProgramError{Code: CodeAccountAlreadyInUse, Message: "account already in use"}
	ErrPrivilegeEscalation   = &ProgramError{Code: CodePrivilegeEscalation, Message: "privilege escalation"}
	ErrExternalDataModified  = &ProgramError{Code: CodeExternalDataModified, Message: "program modified data of an account it does not own"}
	ErrExternalLamportSpend  = &ProgramError{Code: CodeExternalLamportSpend, Message: "program spent lamports of an account it does not own"}
	ErrReadonlyLamportChange = &ProgramError{Code: CodeReadonlyLamportChange, Message: "lamports of read-only account changed"}
	ErrReadonlyDataModified  = &ProgramError{Code: CodeReadonlyDataModified, Message: "data of read-only account modified"}
	ErrUnbalancedInstruction = &ProgramError{Code: CodeUnbalancedInstruction, Message: "sum of account balances changed"}
	ErrModifiedOwner         = &ProgramError{Code: CodeModifiedOwner, Message: "account owner modified illegally"}
	ErrInvalidRealloc        = &ProgramError{Code: CodeInvalidRealloc, Message: "invalid account reallocation"}
	ErrUnsupportedProgram    = &ProgramError{Code: CodeUnsupportedProgram, Message: "unsupported program id"}
	ErrMissingAccount        = &ProgramError{Code: CodeMissingAccount, Message: "instruction references an account not passed to it"}
	ErrCallDepth             = &ProgramError{Code: CodeCallDepth, Message: "cross-program invocation too deep"}
	ErrSignatureFailure      = &ProgramError{Code: CodeSignatureFailure, Message: "transaction signature verification failed"}
	ErrInvalidTransaction    = &ProgramError{Code: CodeInvalidTransaction, Message: "invalid transaction"}
	ErrDuplicateTransaction  = &ProgramError{Code: CodeDuplicateTransaction, Message: "transaction already processed"}
)

var kinds = map[Code]*ProgramError{}

func init() {
	for _, e := range []*ProgramError{
		ErrUnauthorized, ErrWrongOwner, ErrAlreadyInitialized, ErrInvalidArgument, ErrDecode,
		ErrSoldOut, ErrNotEnoughAccountKeys, ErrInsufficientFunds, ErrAccountAlreadyInUse,
		ErrPrivilegeEscalation, ErrExternalDataModified, ErrExternalLamportSpend,
		ErrReadonlyLamportChange, ErrReadonlyDataModified, ErrUnbalancedInstruction,
		ErrModifiedOwner, ErrInvalidRealloc, ErrUnsupportedProgram, ErrMissingAccount,
		ErrCallDepth, ErrSignatureFailure, ErrInvalidTransaction, ErrDuplicateTransaction,
	} {
		kinds[e.Code] = e
	}
}

// Wrap returns an error of the given kind caused by err.
func Wrap(kind *ProgramError, err error) *ProgramError {
	return &ProgramError{Code: kind.Code, Message: kind.Message, Cause: err}
}

// Errorf returns an error of the given kind with a formatted detail message.
func Errorf(kind *ProgramError, format string, args ...interface{}) *ProgramError {
	return &ProgramError{Code: kind.Code, Message: kind.Message, Cause: fmt.Errorf(format, args...)}
}

// FromCode rebuilds a ProgramError received over the wire. Unknown codes keep the
// code and the remote message.
func FromCode(code Code, message string) *ProgramError {
	if kind, ok := kinds[code]; ok {
		if message == "" || message == kind.Message {
			return kind
		}
		return &ProgramError{Code: code, Message: message}
	}
	return &ProgramError{Code: code, Message: message}
}

// IsProgramError checks if an error is, or wraps, a program error
func IsProgramError(err error) bool {
	var pe *ProgramError
	return stderrors.As(err, &pe)
}

// CodeOf returns the code of the outermost program error in err's chain.
func CodeOf(err error) (Code, bool) {
	var pe *ProgramError
	if stderrors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func New(text string) error {
	return stderrors.New(text)
}
