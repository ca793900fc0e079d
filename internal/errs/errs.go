// Package errs contains sentinel errors shared by the core, the stores and the
// HTTP layer so that failures map to stable responses.
package errs

import (
	"errors"
	"strings"
)

// Message write validation. All of these are client-input errors.
var (
	// ErrInvalidMessageShape: group message without group, or private message without recipient.
	ErrInvalidMessageShape = errors.New("invalid message shape")

	// ErrNotAGroupMember: the principal is not currently a member of the group.
	ErrNotAGroupMember = errors.New("not a group member")

	// ErrConflictingFields: group message with a recipient, or private message with a group.
	ErrConflictingFields = errors.New("conflicting fields")

	// ErrSelfMessage: private message addressed to the sender.
	ErrSelfMessage = errors.New("cannot send a private message to yourself")

	// ErrEmptyPlaintext: non-encrypted message with empty content.
	ErrEmptyPlaintext = errors.New("empty plaintext")

	// ErrIncompleteEnvelope: encrypted message missing one or more envelope fields.
	ErrIncompleteEnvelope = errors.New("incomplete envelope")
)

// Access and lookup.
var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Membership.
var (
	ErrAlreadyExists       = errors.New("already exists")
	ErrCreatorCannotLeave  = errors.New("group creator cannot leave")
	ErrCannotRemoveCreator = errors.New("cannot remove the group creator")
)

// ErrBroadcastUnavailable is internal: it is logged by the broadcaster and
// never returned to a caller of a write operation.
var ErrBroadcastUnavailable = errors.New("broadcast unavailable")

// FieldError decorates a sentinel with a readable message and the names of
// the offending request fields.
type FieldError struct {
	Err    error
	Msg    string
	Fields []string
}

func (e *FieldError) Error() string {
	if e.Msg == "" {
		return e.Err.Error() + ": " + strings.Join(e.Fields, ", ")
	}
	return e.Msg
}

func (e *FieldError) Unwrap() error { return e.Err }

// Field builds a *FieldError around err.
func Field(err error, msg string, fields ...string) error {
	return &FieldError{Err: err, Msg: msg, Fields: fields}
}

// Fields returns the field names carried by err, if any.
func Fields(err error) []string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Fields
	}
	return nil
}

// IsValidation reports whether err is a client-input error that should be
// surfaced as a bad request.
func IsValidation(err error) bool {
	for _, s := range []error{
		ErrInvalidMessageShape,
		ErrNotAGroupMember,
		ErrConflictingFields,
		ErrSelfMessage,
		ErrEmptyPlaintext,
		ErrIncompleteEnvelope,
		ErrInvalidInput,
		ErrCreatorCannotLeave,
		ErrCannotRemoveCreator,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}
