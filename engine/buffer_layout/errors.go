package buffer_layout

import (
	"fmt"
	"strings"
)

// InvalidLayoutError reports an instance attribute layout that cannot be bound to the
// given backing buffer.
type InvalidLayoutError struct {
	Attribute string
	Reason    string
}

func (e *InvalidLayoutError) Error() string {
	if e.Attribute == "" {
		return "invalid layout: " + e.Reason
	}
	return fmt.Sprintf("invalid layout for attribute %q: %s", e.Attribute, e.Reason)
}

func invalidLayout(attribute, format string, args ...any) *InvalidLayoutError {
	return &InvalidLayoutError{Attribute: attribute, Reason: fmt.Sprintf(format, args...)}
}

// LayoutInvariantError is the panic value raised when the instance attributes of a
// geometry break the shared backing buffer invariant. It indicates a defect in the code
// that built the geometry and is not meant to be recovered from.
type LayoutInvariantError struct {
	Reason     string
	Attributes []string
}

func (e *LayoutInvariantError) Error() string {
	if len(e.Attributes) == 0 {
		return "layout invariant violated: " + e.Reason
	}
	return fmt.Sprintf("layout invariant violated: %s (%s)", e.Reason, strings.Join(e.Attributes, ", "))
}
