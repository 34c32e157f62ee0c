// Package xslices has slice helpers that the standard slices package
// lacks.
package xslices

// Filter returns the elements of s for which keep returns true, in
// order. s is not modified.
func Filter[T any, S ~[]T](s S, keep func(T) bool) (r S) {
	r = make(S, 0, len(s))
	for _, v := range s {
		if keep(v) {
			r = append(r, v)
		}
	}
	return r
}

// Find returns the first element of s for which match returns true.
func Find[T any, S ~[]T](s S, match func(T) bool) (v T, ok bool) {
	for _, v := range s {
		if match(v) {
			return v, true
		}
	}
	return v, false
}
