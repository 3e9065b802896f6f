// Package feed fans snapshots out to any number of subscribers.
//
// A Broadcaster remembers the last published value. A new subscriber first
// receives that value and then every later one, in publish order. Each
// subscriber has its own queue, so a slow reader never blocks the publisher
// or other readers and never loses a value.
package feed

import "sync"

// Broadcaster publishes values of type T to subscribers.
// Published values are shared between subscribers and must be treated as read-only.
type Broadcaster[T any] struct {
	mu      sync.Mutex
	current T
	has     bool
	closed  bool
	subs    map[*Subscription[T]]struct{}
}

// New returns an empty broadcaster.
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[*Subscription[T]]struct{})}
}

// NewWith returns a broadcaster whose current value is v.
func NewWith[T any](v T) *Broadcaster[T] {
	b := New[T]()
	b.current = v
	b.has = true
	return b
}

// Publish makes v the current value and queues it for every subscriber.
// Publishing after Close is a no-op.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.current = v
	b.has = true
	for s := range b.subs {
		s.push(v)
	}
}

// Current returns the last published value.
func (b *Broadcaster[T]) Current() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current, b.has
}

// Subscribe registers a new subscriber. The current value, if any, is the
// first value it receives.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		b:    b,
		out:  make(chan T),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.stop()
		close(s.out)
		return s
	}
	if b.has {
		s.queue = append(s.queue, b.current)
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

// Close ends every subscription. Values still queued are discarded.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription[T]]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.stop()
	}
}

// Subscription is one subscriber's ordered view of a Broadcaster.
type Subscription[T any] struct {
	b   *Broadcaster[T]
	out chan T

	mu    sync.Mutex
	queue []T
	wake  chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// C returns the channel of values. It is closed after Close.
func (s *Subscription[T]) C() <-chan T { return s.out }

// Close unsubscribes. It does not affect the broadcaster or other subscribers.
func (s *Subscription[T]) Close() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()
	s.stop()
}

func (s *Subscription[T]) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)
	var zero T
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		v := s.queue[0]
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- v:
		case <-s.done:
			return
		}
	}
}
