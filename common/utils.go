package common

// Coalesce returns the first argument that is not the zero value of T, or the zero value
// if every argument is zero. Used to layer configured values over defaults.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero candidate
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}
