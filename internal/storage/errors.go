package storage

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrContainerCreation     = errors.New("container creation error")
	ErrContainerDeletion     = errors.New("container deletion error")
	ErrContainerSearch       = errors.New("container search error")
	ErrDocumentInsertion     = errors.New("document insertion error")
	ErrDocumentUpdate        = errors.New("document update error")
	ErrIndexPublication      = errors.New("index publication error")
	ErrCompaction            = errors.New("compaction error")
	ErrTemplateCreation      = errors.New("template creation error")
	ErrUnrecognizedDirective = errors.New("unrecognized directive")

	// ErrUnknownContainer means a container was created but could not be
	// read back, as opposed to creation itself failing.
	ErrUnknownContainer = errors.New("unknown container")
)

// Error is a storage failure of a given Kind. Cause is the backend error, if
// any.
type Error struct {
	Kind      error
	Template  string
	Directive string
	Cause     error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	switch {
	case e.Template != "":
		msg = fmt.Sprintf("%s: template %s", msg, e.Template)
	case e.Directive != "":
		msg = fmt.Sprintf("%s: %q", msg, e.Directive)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func wrap(kind, cause error) error {
	return &Error{Kind: kind, Cause: cause}
}
