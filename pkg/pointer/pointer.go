package pointer

// To returns a pointer to a copy of v
func To[T any](v T) *T {
	return &v
}

// Value dereferences p, returning the zero value for nil
func Value[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
