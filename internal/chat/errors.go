package chat

import (
	"errors"
	"fmt"
)

// Kind classifies a stage failure.
type Kind int

const (
	// KindExternalService covers failures and timeouts of generation,
	// embedding, search or transport calls.
	KindExternalService Kind = iota + 1

	// KindConfig covers missing personas and broken templates.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindExternalService:
		return "external service"
	case KindConfig:
		return "config"
	}
	return "unknown"
}

// ErrNoPersona is wrapped by the stage error returned when no persona can be
// resolved for the server.
var ErrNoPersona = errors.New("chat: no persona available")

// ErrEmptyReply is returned when the generation service answers with blank
// text.
var ErrEmptyReply = errors.New("chat: empty reply")

// StageError is the failure of one pipeline stage.
type StageError struct {
	Stage State
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage State, kind Kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
