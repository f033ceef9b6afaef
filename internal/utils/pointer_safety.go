package utils

func Ptr[T any](v T) *T {
	return &v
}

// Both reports whether a and b are both non-nil
func Both[A, B any](a *A, b *B) bool {
	return a != nil && b != nil
}
