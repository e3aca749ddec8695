package service

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindMissingParameter     Kind = "missing_parameter"
	KindInvalidParameter     Kind = "invalid_parameter"
	KindExternalProcessError Kind = "external_process_error"
	KindOutputParseError     Kind = "output_parse_error"
	KindDomainError          Kind = "domain_error"
)

var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrExternalProcess  = errors.New("external process failed")
	ErrOutputParse      = errors.New("unparseable process output")
	ErrDomain           = errors.New("model reported an error")
)

// RelayError is returned for every failed relay request. Details carries the
// diagnostic text shown to the caller; Payload holds the model's own JSON
// for domain errors.
type RelayError struct {
	Kind    Kind
	Details string
	Payload []byte
	Err     error
}

func (e *RelayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Details)
	}
	return string(e.Kind)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Is lets errors.Is match a RelayError against the sentinel for its kind.
func (e *RelayError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// Status is the HTTP status code for the error's kind.
func (e *RelayError) Status() int {
	switch e.Kind {
	case KindMissingParameter, KindInvalidParameter, KindDomainError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sentinel(k Kind) error {
	switch k {
	case KindMissingParameter:
		return ErrMissingParameter
	case KindInvalidParameter:
		return ErrInvalidParameter
	case KindExternalProcessError:
		return ErrExternalProcess
	case KindOutputParseError:
		return ErrOutputParse
	case KindDomainError:
		return ErrDomain
	}
	return nil
}

// KindOf reports the relay kind of err, or "" when err is not a RelayError.
func KindOf(err error) Kind {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
