package sweets

// Optional carries a value plus an explicit presence flag so a patch can tell
// "leave untouched" apart from a zero value.
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// FromPtr converts a decoded pointer field; nil means absent.
func FromPtr[T any](v *T) Optional[T] {
	if v == nil {
		return Optional[T]{}
	}
	return Some(*v)
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}
