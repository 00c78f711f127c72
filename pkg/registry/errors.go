package registry

import "errors"

var (
	// ErrDuplicateMethod is returned by Register when a name is already taken.
	ErrDuplicateMethod = errors.New("duplicate method")

	// ErrRegistryBuilt is returned by Register after Build has been called.
	ErrRegistryBuilt = errors.New("registry already built")
)

// ErrMethodNotFound is returned when no handler is registered for a method.
type ErrMethodNotFound struct {
	Method string
}

func (e ErrMethodNotFound) Error() string {
	if e.Method == "" {
		return "method not found"
	}

	return "method not found: " + e.Method
}

// ErrInvalidParams is returned by handlers whose params are missing or of the
// wrong shape.
type ErrInvalidParams struct {
	Method string
	Reason string
}

func (e ErrInvalidParams) Error() string {
	msg := "invalid params"
	if e.Method != "" {
		msg += " for " + e.Method
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// IsNotFound reports whether err is an ErrMethodNotFound.
func IsNotFound(err error) bool {
	var target ErrMethodNotFound
	return errors.As(err, &target)
}

// IsInvalidParams reports whether err is an ErrInvalidParams.
func IsInvalidParams(err error) bool {
	var target ErrInvalidParams
	return errors.As(err, &target)
}
