package queue

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind is the discriminator used to route an item to its listeners.
type Kind uint16

// Item is anything that can travel through a Queue.
type Item interface {
	Kind() Kind
}

// Handler consumes one item. A returned error is logged by the queue and
// does not affect the remaining items or handlers.
type Handler[T Item] func(item T) error

// Queue is a listener-dispatch buffer. Items added during ProcessAll land in
// the next backlog and are not seen by the dispatch in progress.
//
// Add may be called from any goroutine. AddListener and ProcessAll belong to
// the game loop goroutine.
type Queue[T Item] struct {
	name string
	log  *zap.Logger

	mu      sync.Mutex // protects backlog
	backlog []T

	handlers map[Kind][]Handler[T]
}

func New[T Item](name string, log *zap.Logger) *Queue[T] {
	return &Queue[T]{
		name:     name,
		log:      log.With(zap.String("queue", name)),
		backlog:  make([]T, 0, 64),
		handlers: make(map[Kind][]Handler[T]),
	}
}

// AddListener registers fn for items of the given kind. Listeners of one
// kind run in registration order.
func (q *Queue[T]) AddListener(kind Kind, fn Handler[T]) {
	q.handlers[kind] = append(q.handlers[kind], fn)
}

// Add appends item to the backlog.
func (q *Queue[T]) Add(item T) {
	q.mu.Lock()
	q.backlog = append(q.backlog, item)
	q.mu.Unlock()
}

func (q *Queue[T]) Name() string { return q.name }

// Len returns the number of items waiting for the next ProcessAll.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// ProcessAll takes the current backlog and dispatches it in FIFO order.
// Returns the number of items taken.
func (q *Queue[T]) ProcessAll() int {
	q.mu.Lock()
	items := q.backlog
	q.backlog = make([]T, 0, cap(items))
	q.mu.Unlock()

	for _, item := range items {
		kind := item.Kind()
		handlers := q.handlers[kind]
		if len(handlers) == 0 {
			q.log.Debug("no listener for item", zap.Uint16("kind", uint16(kind)))
			continue
		}
		for i, h := range handlers {
			if err := q.safeCall(h, item); err != nil {
				q.log.Warn("listener failed",
					zap.Uint16("kind", uint16(kind)),
					zap.Int("listener", i),
					zap.Error(err),
				)
			}
		}
	}
	return len(items)
}

// safeCall runs a handler with panic recovery so one bad listener cannot
// take down the tick.
func (q *Queue[T]) safeCall(h Handler[T], item T) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panic: %v", rec)
		}
	}()
	return h(item)
}
