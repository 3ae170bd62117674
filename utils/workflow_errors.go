package utils

import (
	"errors"
	"fmt"
)

// ErrGenerationExhausted is returned when no unique reference number could be produced
// within the retry budget. Callers may retry the whole operation.
var ErrGenerationExhausted = errors.New("reference number generation exhausted retries")

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity     string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Entity, e.Identifier)
}

// InvalidStateError reports an operation that the entity's current status forbids.
type InvalidStateError struct {
	Entity     string
	Identifier string
	Status     string
	Operation  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s '%s' in status %s", e.Operation, e.Entity, e.Identifier, e.Status)
}

// ConflictError reports a uniqueness violation that the caller may resolve by retrying.
type ConflictError struct {
	Entity     string
	Identifier string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.Entity, e.Identifier)
}

// InvalidInputError reports a request that is missing or malformed before any state is read.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewNotFound(entity, identifier string) error {
	return &NotFoundError{Entity: entity, Identifier: identifier}
}

func NewInvalidState(entity, identifier, status, operation string) error {
	return &InvalidStateError{Entity: entity, Identifier: identifier, Status: status, Operation: operation}
}

func NewConflict(entity, identifier string) error {
	return &ConflictError{Entity: entity, Identifier: identifier}
}

func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}
