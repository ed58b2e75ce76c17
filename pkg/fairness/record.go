package fairness

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAttributeValue is returned when a protected attribute or label is not 0 or 1.
	ErrInvalidAttributeValue = errors.New("invalid attribute value")

	// ErrEmptyGroup is returned when one of the compared groups has no records.
	ErrEmptyGroup = errors.New("empty group")
)

// Record is a single audited subject.
type Record struct {
	Protected int     `json:"protected" yaml:"protected"`
	Predicted int     `json:"predicted" yaml:"predicted"`
	Truth     int     `json:"truth" yaml:"truth"`
	Score     float64 `json:"score,omitempty" yaml:"score,omitempty"`
	HasScore  bool    `json:"-" yaml:"-"`
}

func isBinary(v int) bool {
	return v == 0 || v == 1
}

func (r Record) validate() error {
	if !isBinary(r.Protected) {
		return fmt.Errorf("protected attribute %d: %w", r.Protected, ErrInvalidAttributeValue)
	}
	if !isBinary(r.Predicted) {
		return fmt.Errorf("predicted label %d: %w", r.Predicted, ErrInvalidAttributeValue)
	}
	if !isBinary(r.Truth) {
		return fmt.Errorf("true label %d: %w", r.Truth, ErrInvalidAttributeValue)
	}
	return nil
}

// Group is an ordered set of records sharing one protected attribute value.
type Group struct {
	Privileged bool
	Records    []Record
}

// Name returns the group name used in errors and reports.
func (g Group) Name() string {
	if g.Privileged {
		return "privileged"
	}
	return "unprivileged"
}

// Len returns the number of records in the group.
func (g Group) Len() int {
	return len(g.Records)
}
