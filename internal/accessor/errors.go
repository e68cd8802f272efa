package accessor

import "fmt"

// ErrUnknownAccessor reports an inner "${...}" expression that matched none
// of the recognized forms.
func ErrUnknownAccessor(accessor string) error {
	return fmt.Errorf("unknown accessor: %q", accessor)
}

// ErrNotValidIdOrName reports a malformed identifier or payload path segment.
func ErrNotValidIdOrName(message string) error {
	return fmt.Errorf("not a valid id or name: %s", message)
}
