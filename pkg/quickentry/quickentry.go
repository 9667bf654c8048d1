// Package quickentry turns one-line shorthand typed into the dashboard into
// structured records.
//
// Events:       [date] time title ["description"]
// Transactions: +/-amount [description]
//
// Parsers never panic. A rejected input comes back as a *Rejection wrapping
// one of the sentinel errors below, holding the original input so the caller
// can leave it in place for correction.
package quickentry

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent means the input lacks the mandatory time or title.
	ErrMalformedEvent = errors.New("format: [m/d] hh:mm title \"description\"")
	// ErrFormat means a transaction input did not match +/-amount description.
	ErrFormat = errors.New("format: +/-amount description")
	// ErrInvalidAmount means the amount did not parse as a finite decimal.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Rejection is a recoverable parse failure.
type Rejection struct {
	Input string
	Err   error
}

func (r *Rejection) Error() string { return r.Err.Error() }

func (r *Rejection) Unwrap() error { return r.Err }

func reject(input string, err error) *Rejection {
	return &Rejection{Input: input, Err: err}
}

// IsRejection reports whether err is a quick-entry rejection.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Describe returns a short human-readable description of the rejection, used
// in CLI output.
func Describe(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return fmt.Sprintf("%q: %v", r.Input, r.Err)
	}
	return err.Error()
}
