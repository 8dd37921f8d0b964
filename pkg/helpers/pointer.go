package helpers

// ToPtr returns a pointer to a copy of v. Handy for the optional parameters of
// the OpenAI client.
func ToPtr[T any](v T) *T {
	return &v
}

// ValueOr dereferences p, returning fallback when p is nil.
func ValueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
