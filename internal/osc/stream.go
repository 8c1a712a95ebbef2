package osc

import "sync"

// Stream is a broadcast channel for one kind of event. Subscribers are called
// synchronously, in subscription order, from the goroutine feeding the
// processor, so delivery order matches byte order in the session output.
type Stream[T any] struct {
	mu        sync.Mutex
	subs      []subscription[T]
	nextID    int
	done      chan struct{}
	completed bool
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func newStream[T any]() *Stream[T] {
	return &Stream[T]{done: make(chan struct{})}
}

// Subscribe registers fn and returns a function that removes it again.
// Subscribing to a completed stream is allowed; fn is simply never called.
func (s *Stream[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed || fn == nil {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	return func() { s.remove(id) }
}

func (s *Stream[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Done is closed once the stream completes.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether the stream has completed.
func (s *Stream[T]) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// emit delivers v to every current subscriber. Subscribers may subscribe or
// unsubscribe from inside their callback; the change applies to the next emit.
func (s *Stream[T]) emit(v T) bool {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return false
	}
	subs := s.subs
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(v)
	}
	return true
}

func (s *Stream[T]) complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	s.completed = true
	s.subs = nil
	close(s.done)
}
