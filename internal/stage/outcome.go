package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"alchemist/internal/services"
)

// Kind classifies the result of one stage invocation.
type Kind int

const (
	// SuccessNew means the stage stored a new entity.
	SuccessNew Kind = iota + 1
	// SuccessNoWork means there was nothing to do: a duplicate, an idempotent
	// repeat, or a skipped enhancement.
	SuccessNoWork
	// Transient means a collaborator failed in a way a later attempt may fix.
	Transient
	// Terminal means a deterministic rejection that must not be retried
	// automatically.
	Terminal
)

func (k Kind) String() string {
	switch k {
	case SuccessNew:
		return "success_new"
	case SuccessNoWork:
		return "success_no_work"
	case Transient:
		return "transient"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the structured result every stage returns. The scheduler decides
// retry or finish from Kind alone.
type Outcome struct {
	Kind     Kind
	EntityID int64
	Message  string
	Err      error
}

// Succeeded reports whether the outcome is one of the success kinds.
func (o Outcome) Succeeded() bool {
	return o.Kind == SuccessNew || o.Kind == SuccessNoWork
}

func (o Outcome) String() string {
	parts := []string{o.Kind.String()}
	if o.EntityID > 0 {
		parts = append(parts, fmt.Sprintf("entity=%d", o.EntityID))
	}
	if msg := strings.TrimSpace(o.Message); msg != "" {
		parts = append(parts, msg)
	}
	if o.Err != nil {
		parts = append(parts, o.Err.Error())
	}
	return strings.Join(parts, " ")
}

// New reports a newly stored entity.
func New(id int64, message string) Outcome {
	return Outcome{Kind: SuccessNew, EntityID: id, Message: message}
}

// NoWork reports a successful invocation that produced nothing new.
func NoWork(id int64, message string) Outcome {
	return Outcome{Kind: SuccessNoWork, EntityID: id, Message: message}
}

// Retry reports a transient failure.
func Retry(message string, err error) Outcome {
	return Outcome{Kind: Transient, Message: message, Err: err}
}

// Reject reports a terminal failure.
func Reject(message string, err error) Outcome {
	return Outcome{Kind: Terminal, Message: message, Err: err}
}

// Classify maps a collaborator or store error onto Transient or Terminal.
// Validation, configuration, and not-found markers are terminal; everything
// else, including unmarked errors, is transient.
func Classify(message string, err error) Outcome {
	if err == nil {
		return Reject(message, errors.New("unclassified failure"))
	}
	if errors.Is(err, context.Canceled) {
		return Retry(message, err)
	}
	if services.Retryable(err) {
		return Retry(message, err)
	}
	return Reject(message, err)
}
