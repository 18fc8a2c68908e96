package container

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInvalidField = errors.New("invalid field identifier")

	fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// UpdateOperation is a partial mutation applied server-side to an existing
// document. Set is the only variant.
type UpdateOperation interface {
	isUpdateOperation()
}

// Set assigns Value to Field.
type Set struct {
	Field string
	Value any
}

func (Set) isUpdateOperation() {}

// UpdateItem pairs a document id with the operation to apply to it.
type UpdateItem struct {
	ID        string
	Operation UpdateOperation
}

// FieldPolicy decides which field identifiers may be embedded in an update
// script. The zero value only enforces the identifier grammar.
type FieldPolicy struct {
	allowed map[string]struct{}
}

// NewFieldPolicy restricts updates to the given fields. An empty list allows
// every well-formed identifier.
func NewFieldPolicy(fields ...string) FieldPolicy {
	if len(fields) == 0 {
		return FieldPolicy{}
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}
	return FieldPolicy{allowed: allowed}
}

// Check rejects malformed identifiers and, when an allow-list is set, fields
// outside it.
func (p FieldPolicy) Check(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	if p.allowed != nil {
		if _, ok := p.allowed[field]; !ok {
			return fmt.Errorf("%w: %q is not updatable", ErrInvalidField, field)
		}
	}
	return nil
}
