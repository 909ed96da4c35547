package bridge

import (
	"errors"
	"fmt"
)

// ErrValidation marks a request rejected before any side effect. Wrapped
// errors carry the field-level reason for the client to display.
var ErrValidation = errors.New("validation failed")

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
