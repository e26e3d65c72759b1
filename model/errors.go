package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapabilityUnavailable matches every CapabilityUnavailable error
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrVersionConflict is returned when a versioned write lost the race
	ErrVersionConflict = errors.New("version conflict")
	// ErrNotFound is returned when a node or conversation does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for requests no component can act on
	ErrInvalidInput = errors.New("invalid input")
)

// IntegrityKind classifies a graph integrity violation
type IntegrityKind string

const (
	IntegrityCycle    IntegrityKind = "cycle"
	IntegrityDangling IntegrityKind = "dangling"
)

// GraphIntegrityError reports a cycle or dangling reference in the hierarchy
type GraphIntegrityError struct {
	Kind   IntegrityKind
	NodeID string
	Path   []string
}

func (e *GraphIntegrityError) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("graph integrity: %s at node %s (path %s)", e.Kind, e.NodeID, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("graph integrity: %s at node %s", e.Kind, e.NodeID)
}

// RetrievalTimeout reports a hop whose retrieval call exceeded its budget
type RetrievalTimeout struct {
	Hop int
	Err error
}

func (e *RetrievalTimeout) Error() string {
	return fmt.Sprintf("retrieval timeout on hop %d: %v", e.Hop, e.Err)
}

func (e *RetrievalTimeout) Unwrap() error {
	return e.Err
}

// BudgetExceeded reports a planned truncation of the hop loop
type BudgetExceeded struct {
	Budget    int
	Requested int
}

func (e *BudgetExceeded) Error() string {
	return fmt.Sprintf("hop budget %d exceeded (%d requested)", e.Budget, e.Requested)
}

// CapabilityUnavailable reports an unreachable external collaborator
type CapabilityUnavailable struct {
	Capability string
	Err        error
}

func (e *CapabilityUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s unavailable", e.Capability)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
}

func (e *CapabilityUnavailable) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCapabilityUnavailable) match
func (e *CapabilityUnavailable) Is(target error) bool {
	return target == ErrCapabilityUnavailable
}

// NewCapabilityUnavailable wraps err as an unavailable capability
func NewCapabilityUnavailable(capability string, err error) error {
	return &CapabilityUnavailable{Capability: capability, Err: err}
}
