package service

import (
	"fmt"

	"shopify-order-sync/internal/apperror"
	"shopify-order-sync/internal/model"
)

type OutcomeKind string

const (
	OutcomeSuccess     OutcomeKind = "success"
	OutcomeInvalid     OutcomeKind = "invalid"
	OutcomeIncomplete  OutcomeKind = "incomplete"
	OutcomeSkipped     OutcomeKind = "skipped"
	OutcomeConfigError OutcomeKind = "config_error"
	OutcomeFailure     OutcomeKind = "failure"
)

// Outcome is the result of handling one event. Expected branches such as a
// duplicate delivery or an incomplete order are outcomes, not errors.
type Outcome struct {
	Kind    OutcomeKind
	Message string
	// Err is set for ConfigError and Failure.
	Err error
	// Invoice names the invoice the event touched, if any.
	Invoice string
}

func Success(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeSuccess, Message: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeInvalid, Message: fmt.Sprintf(format, args...)}
}

func Incomplete(reason string) Outcome {
	return Outcome{Kind: OutcomeIncomplete, Message: reason}
}

func Skipped(format string, args ...any) Outcome {
	return Outcome{Kind: OutcomeSkipped, Message: fmt.Sprintf(format, args...)}
}

// Failure classifies err: configuration problems become ConfigError,
// everything else Failure.
func Failure(err error) Outcome {
	if apperror.IsConfiguration(err) {
		return Outcome{Kind: OutcomeConfigError, Message: err.Error(), Err: err}
	}
	return Outcome{Kind: OutcomeFailure, Message: err.Error(), Err: err}
}

func (o Outcome) WithInvoice(name string) Outcome {
	o.Invoice = name
	return o
}

func (o Outcome) LedgerStatus() model.LedgerStatus {
	switch o.Kind {
	case OutcomeSuccess:
		return model.LedgerSuccess
	case OutcomeInvalid:
		return model.LedgerInvalid
	case OutcomeIncomplete:
		return model.LedgerIncomplete
	case OutcomeSkipped:
		return model.LedgerSkipped
	default:
		return model.LedgerError
	}
}

func (o Outcome) LedgerMessage() string {
	if o.Kind == OutcomeConfigError {
		return "configuration error: " + o.Message
	}
	return o.Message
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s", o.Kind, o.LedgerMessage())
}
