package gdx

import (
	"errors"
	"fmt"
)

var (
	ErrNetwork           = errors.New("network error")
	ErrArchiveRead       = errors.New("archive read error")
	ErrFilesystem        = errors.New("filesystem error")
	ErrMalformedFilename = errors.New("malformed filename")
	ErrConfiguration     = errors.New("configuration error")
)

// UnitError records the failure of one unit of work (a year or a file).
// errors.Is matches both the Kind and the underlying cause.
type UnitError struct {
	Kind error
	Unit string
	Err  error
}

func (e *UnitError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Unit, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Unit, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Unit, e.Kind, e.Err)
}

func (e *UnitError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// unitErr tags err with the first known kind it wraps, defaulting to ErrNetwork.
func unitErr(unit string, err error) error {
	kind := ErrNetwork
	for _, k := range []error{ErrFilesystem, ErrArchiveRead, ErrMalformedFilename, ErrConfiguration, ErrNetwork} {
		if errors.Is(err, k) {
			kind = k
			break
		}
	}
	return &UnitError{Kind: kind, Unit: unit, Err: err}
}

// kindLabel is the metrics label for an error kind.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrFilesystem):
		return "filesystem"
	case errors.Is(err, ErrArchiveRead):
		return "archive"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "network"
	}
}

func networkf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNetwork, fmt.Sprintf(format, args...))
}
