package analyzer

import (
	"errors"
	"fmt"
)

// Kind classifies a failed analyzer run.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindEmptyOutput
	KindParse
	KindNonZeroExit
	KindTimeout
)

var (
	ErrAnalyzerNotFound = errors.New("analyzer not found")
	ErrEmptyOutput      = errors.New("analyzer returned empty output")
	ErrParse            = errors.New("analyzer output is not valid JSON")
	ErrNonZeroExit      = errors.New("analyzer exited with non-zero code")
	ErrTimeout          = errors.New("analyzer timed out")
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindEmptyOutput:
		return "empty_output"
	case KindParse:
		return "parse_error"
	case KindNonZeroExit:
		return "non_zero_exit"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrAnalyzerNotFound
	case KindEmptyOutput:
		return ErrEmptyOutput
	case KindParse:
		return ErrParse
	case KindNonZeroExit:
		return ErrNonZeroExit
	case KindTimeout:
		return ErrTimeout
	default:
		return nil
	}
}

// Error is a terminal failure of one analyzer run. Its message alone tells
// the kinds apart: it names the missing path, the timeout, the exit code or
// the decoder problem.
type Error struct {
	Kind     Kind
	ExitCode int    // set for KindNonZeroExit
	Stderr   string // trimmed diagnostic text, if any was captured
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, analyzer.ErrTimeout).
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of an analyzer failure, or 0 when err is not one
// (including cancellation).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

func withStderr(msg, stderr string) string {
	if stderr == "" {
		return msg
	}
	return msg + ": " + stderr
}
