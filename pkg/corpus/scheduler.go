package corpus

import (
	"sync"

	"github.com/Beastly713/mutafuzz/pkg/rng"
)

// Scheduler picks the next base testcase for the outer fuzzing loop.
type Scheduler[I any] interface {
	Next(r rng.Rand, c Corpus[I]) (int, error)
}

// RandomScheduler picks uniformly.
type RandomScheduler[I any] struct{}

func (RandomScheduler[I]) Next(r rng.Rand, c Corpus[I]) (int, error) {
	n := c.Count()
	if n == 0 {
		return -1, ErrEmpty
	}
	return rng.Choose(r, n), nil
}

// QueueScheduler walks the corpus in insertion order and wraps around.
type QueueScheduler[I any] struct {
	mu   sync.Mutex
	next int
}

func (q *QueueScheduler[I]) Next(_ rng.Rand, c Corpus[I]) (int, error) {
	n := c.Count()
	if n == 0 {
		return -1, ErrEmpty
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= n {
		q.next = 0
	}
	idx := q.next
	q.next++
	return idx, nil
}
