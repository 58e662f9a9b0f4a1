package chasm

import (
	"fmt"
	"strings"
)

type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	ParseFloatError
	ArgumentNumberMismatch
	UnexpectedType
	UndeclaredProc
)

func (k ErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case ParseFloatError:
		return "ParseFloatError"
	case ArgumentNumberMismatch:
		return "ArgumentNumberMismatch"
	case UnexpectedType:
		return "UnexpectedType"
	case UndeclaredProc:
		return "UndeclaredProc"
	}
	panic("unreachable")
}

// Error is the single failure produced by a compilation: a kind, the
// byte span it points at, and the source it points into.
type Error struct {
	Kind   ErrorKind
	Span   Span
	source []byte
	msg    string
}

func NewError(kind ErrorKind, span Span, source []byte, format string, args ...interface{}) Error {
	return Error{
		Kind:   kind,
		Span:   span,
		source: source,
		msg:    fmt.Sprintf(format, args...),
	}
}

func (e Error) Error() string {
	line, col := e.Position()
	return fmt.Sprintf("error at %d:%d: %s", line, col, e.msg)
}

// Position resolves the start of the error span to a 1-based line and
// column. A span outside every line resolves to (0, 0).
func (e Error) Position() (line, col int) {
	offset := 0
	for i, l := range strings.Split(string(e.source), "\n") {
		n := len(l)
		if offset+n < len(e.source) {
			n++ // a line owns its terminating newline
		}
		if e.Span.Start >= offset && e.Span.Start < offset+n {
			return i + 1, e.Span.Start - offset + 1
		}
		offset += len(l) + 1
	}
	return 0, 0
}

// naturalList joins items the way a diagnostic reads them: "A, B or C".
func naturalList(items []string) string {
	if len(items) <= 1 {
		return strings.Join(items, "")
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}
