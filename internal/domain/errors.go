// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates a request was rejected before any store write.
var ErrValidation = errors.New("validation failed")

// ErrConflict indicates an illegal state transition.
var ErrConflict = errors.New("conflict")
