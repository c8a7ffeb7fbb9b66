package platform

// Result is the outcome of probing a buffer for a firmware structure.
// A parser returns an unrecognized result, not an error, when the magic it
// looks for is absent; callers branch on the second value of Get.
type Result[T any] struct {
	value      T
	recognized bool
}

// Recognized wraps a successfully parsed value.
func Recognized[T any](v T) Result[T] {
	return Result[T]{value: v, recognized: true}
}

// Unrecognized returns the negative result for T.
func Unrecognized[T any]() Result[T] {
	return Result[T]{}
}

// Get returns the parsed value and whether the structure was recognized.
// The value is the zero T when it was not.
func (r Result[T]) Get() (T, bool) {
	return r.value, r.recognized
}
