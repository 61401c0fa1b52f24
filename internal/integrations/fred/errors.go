package fred

import (
	"fmt"

	"github.com/Dan9191/card-rates/internal/models"
	"github.com/pkg/errors"
)

// Kind classifies provider failures so callers can decide how to degrade
type Kind string

const (
	KindNetwork Kind = "network"
	KindAuth    Kind = "auth"
	KindParse   Kind = "parse"
	KindEmpty   Kind = "empty"
)

// Sentinels usable with errors.Is against any *ProviderError
var (
	ErrNetwork = errors.New("provider unreachable")
	ErrAuth    = errors.New("provider rejected credential")
	ErrParse   = errors.New("malformed provider response")
	ErrEmpty   = errors.New("no observations for range")
)

// ProviderError is returned by Client.Fetch for every provider failure
type ProviderError struct {
	Kind     Kind
	SeriesID models.SeriesID
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fred %s error for %s: %v", e.Kind, e.SeriesID, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *ProviderError) Is(target error) bool {
	switch e.Kind {
	case KindNetwork:
		return target == ErrNetwork
	case KindAuth:
		return target == ErrAuth
	case KindParse:
		return target == ErrParse
	case KindEmpty:
		return target == ErrEmpty
	}
	return false
}

// KindOf returns the kind of a provider error, or "" for any other error
func KindOf(err error) Kind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func newError(kind Kind, id models.SeriesID, err error) *ProviderError {
	return &ProviderError{Kind: kind, SeriesID: id, Err: err}
}
