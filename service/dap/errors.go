package dap

import "fmt"

// ID values for the errors a handler can return, in delve's
// error_ids.go style: a flat block of distinguishable numeric
// constants, not an exhaustive taxonomy.
const (
	ErrUnknownCommand   = 9000
	ErrInternal         = 8000
	ErrDecodeArguments  = 7000
	ErrThreadNotFound   = 6000
	ErrFileNotFound     = 6001
	ErrFrameNotFound    = 6002
	ErrScopeNotFound    = 6003
	ErrVariableNotFound = 6004
	ErrNotVirtualFile   = 6005
	ErrEvaluateFailed   = 6006
)

// Error is a protocol-level error per spec §7: it becomes a DAP
// success=false response, never a panic. Host-side bugs (Open Question
// (a)) are represented with the same type, distinguished only by ID and
// logged at Warn instead of crashing the process.
type Error struct {
	ID      int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (id=%d)", e.Message, e.ID)
}

func newError(id int, format string, args ...interface{}) *Error {
	return &Error{ID: id, Message: fmt.Sprintf(format, args...)}
}
