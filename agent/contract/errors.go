package contract

import (
	"errors"
	"fmt"
)

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
)

// ErrorKind classifies a failed turn for the caller.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindClassification ErrorKind = "classification"
	KindGeneration     ErrorKind = "generation"
	KindCheckpoint     ErrorKind = "checkpoint"
)

// TurnError is the single failure shape reported by the orchestrator.
type TurnError struct {
	Kind ErrorKind
	Node string
	Err  error
}

func (e *TurnError) Error() string {
	msg := "<nil>"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Kind == KindCheckpoint:
		return fmt.Sprintf("turn failed (%s): %s; this turn may not be remembered", e.Kind, msg)
	case e.Node != "":
		return fmt.Sprintf("turn failed (%s at %s): %s", e.Kind, e.Node, msg)
	default:
		return fmt.Sprintf("turn failed (%s): %s", e.Kind, msg)
	}
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// NewTurnError wraps err unless it already is a TurnError.
func NewTurnError(kind ErrorKind, node string, err error) *TurnError {
	var te *TurnError
	if errors.As(err, &te) {
		return te
	}
	return &TurnError{Kind: kind, Node: node, Err: err}
}

// KindOf returns the kind of a turn failure, or "" when err is not a TurnError.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
