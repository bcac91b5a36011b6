package timeline

// Signal is an observable value. Subscribers are called synchronously, in
// subscription order, on the goroutine that changed the value.
//
// A Signal is not safe for concurrent use; callers serialize access.
type Signal[T any] struct {
	value  T
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewSignal returns a signal holding v.
func NewSignal[T any](v T) *Signal[T] {
	return &Signal[T]{value: v}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	return s.value
}

// Set stores v and notifies subscribers.
func (s *Signal[T]) Set(v T) {
	s.value = v
	subs := append([]subscriber[T](nil), s.subs...)
	for _, sub := range subs {
		sub.fn(v)
	}
}

// Update sets the value to fn(current).
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Subscribe registers fn and returns a function that removes it. fn is not
// called with the current value.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}
