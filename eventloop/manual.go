package eventloop

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/frobware/go-flowreprog/interpreter"
)

// Manual is a deterministic scheduler with a virtual clock. Nothing
// runs until the owner calls RunPending, Advance or Drain, and then
// callbacks run on the calling goroutine. Post and AfterFunc are safe
// to call from any goroutine.
type Manual struct {
	// run serialises Do.
	run sync.Mutex

	mu     sync.Mutex
	now    time.Time
	queue  []func()
	timers timerQueue
	seq    uint64
}

var _ interpreter.Scheduler = (*Manual)(nil)

// NewManual returns a scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Post queues fn.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// AfterFunc queues fn to run once the virtual clock reaches Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) interpreter.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, when: m.now.Add(d), seq: m.seq, fn: fn}
	heap.Push(&m.timers, t)
	return t
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// RunPending runs posted callbacks, including any they post, until
// the queue is empty. Timers are not fired. It returns the number of
// callbacks run.
func (m *Manual) RunPending() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return n
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
		n++
	}
}

// Advance moves the clock forward by d, firing due timers in deadline
// order and running posted callbacks after each one.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	n := m.RunPending()
	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
		n++
		n += m.RunPending()
	}

	m.mu.Lock()
	if target.After(m.now) {
		m.now = target
	}
	m.mu.Unlock()
	return n
}

// Drain runs callbacks and fires every timer, advancing the clock as
// far as needed, until nothing remains scheduled.
func (m *Manual) Drain() int {
	n := m.RunPending()
	for {
		t := m.popDue(time.Time{})
		if t == nil {
			return n
		}
		t.fn()
		n++
		n += m.RunPending()
	}
}

// Do runs fn and then drains the scheduler, so everything fn set in
// motion has finished by the time Do returns. Concurrent calls are
// serialised. It gives the same guarantee as Loop.Do, for callers
// that own a Manual instead of a running Loop.
func (m *Manual) Do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.run.Lock()
	defer m.run.Unlock()
	fn()
	m.Drain()
	return nil
}

// Scheduled reports the number of posted callbacks plus armed timers.
func (m *Manual) Scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue) + m.timers.Len()
}

// popDue removes the earliest timer due at or before limit, moving the
// clock to its deadline. A zero limit accepts any timer.
func (m *Manual) popDue(limit time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timers.Len() == 0 {
		return nil
	}
	next := m.timers[0]
	if !limit.IsZero() && next.when.After(limit) {
		return nil
	}
	heap.Pop(&m.timers)
	next.fired = true
	if next.when.After(m.now) {
		m.now = next.when
	}
	return next
}

type manualTimer struct {
	m     *Manual
	when  time.Time
	seq   uint64
	fn    func()
	index int
	fired bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired || t.index < 0 {
		return false
	}
	heap.Remove(&t.m.timers, t.index)
	return true
}

// timerQueue orders timers by deadline, then by creation.
type timerQueue []*manualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
