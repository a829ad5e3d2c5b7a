package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-while/go-pan/internal/errkind"
	"github.com/go-while/go-pan/internal/events"
)

// InsertMode controls where a newly submitted task lands relative to
// the existing queue (spec.md §4.10).
type InsertMode int

const (
	InsertBottom InsertMode = iota
	InsertTop
	InsertAge
)

// EventKind distinguishes the events a Queue publishes.
type EventKind int

const (
	EventTaskActiveChanged EventKind = iota
	EventSizeChanged
	EventConnectionCountChanged
	EventOnlineChanged
	EventError
)

// Event is published on every queue-visible change.
type Event struct {
	Kind        EventKind
	Task        *Task
	Active      bool
	ActiveCount int
	TotalCount  int
	ConnCount   int
	Online      bool
	Message     string
}

// Stats summarizes queue state for the UI.
type Stats struct {
	Queued         int
	Running        int
	Stopped        int
	BytesRemaining int64
	BytesPerSecond float64
	ETA            time.Duration
}

// slot is a per-server connection-count semaphore.
type slot struct {
	ch chan struct{}
}

// Queue mediates concurrency by acquiring a per-server connection slot
// before starting a task bound to a server; tasks bound only to local
// state run without a slot (spec.md §4.10, §5).
type Queue struct {
	mux      sync.Mutex
	byID     map[string]*Task
	order    []*Task
	nextAge  int64
	online   bool
	slots    map[string]*slot
	throughput throughputTracker

	bus *events.Bus[Event]
}

// New creates an empty, offline queue.
func New() *Queue {
	return &Queue{
		byID:  make(map[string]*Task),
		slots: make(map[string]*slot),
		bus:   events.NewBus[Event](),
	}
}

// Subscribe registers a listener for queue events.
func (q *Queue) Subscribe() (int, <-chan Event) { return q.bus.Subscribe() }

// Unsubscribe removes a listener.
func (q *Queue) Unsubscribe(id int) { q.bus.Unsubscribe(id) }

// SetOnline flips the queue's online state, publishing online-changed.
func (q *Queue) SetOnline(online bool) {
	q.mux.Lock()
	changed := q.online != online
	q.online = online
	q.mux.Unlock()
	if changed {
		q.bus.Publish(Event{Kind: EventOnlineChanged, Online: online})
	}
}

// Online reports the queue's current online state.
func (q *Queue) Online() bool {
	q.mux.Lock()
	defer q.mux.Unlock()
	return q.online
}

// ConfigureServerSlots (re)sizes the connection-slot pool for a
// server. Shrinking a pool that has slots currently held does not
// revoke them; it only limits future acquisitions.
func (q *Queue) ConfigureServerSlots(serverID string, maxConns int) {
	q.mux.Lock()
	q.slots[serverID] = &slot{ch: make(chan struct{}, maxConns)}
	q.mux.Unlock()
	q.bus.Publish(Event{Kind: EventConnectionCountChanged, ConnCount: maxConns})
}

// AcquireSlot blocks until a connection slot for serverID is
// available, or ctx is done. A task with no ServerID needs no slot;
// callers should not call this for such tasks.
func (q *Queue) AcquireSlot(ctx context.Context, serverID string) (release func(), err error) {
	q.mux.Lock()
	s, ok := q.slots[serverID]
	q.mux.Unlock()
	if !ok {
		return nil, errkind.Newf(errkind.Invariant, "queue: no connection-slot pool configured for server %q", serverID)
	}
	select {
	case s.ch <- struct{}{}:
		return func() { <-s.ch }, nil
	case <-ctx.Done():
		return nil, errkind.New(errkind.Network, ctx.Err())
	}
}

// Insert adds a task to the queue per mode and publishes
// size-changed.
func (q *Queue) Insert(t *Task, mode InsertMode) {
	q.mux.Lock()
	t.State = StateQueued
	q.byID[t.ID] = t
	q.nextAge++
	t.age = q.nextAge
	switch mode {
	case InsertTop:
		q.order = append([]*Task{t}, q.order...)
	case InsertAge:
		i := sort.Search(len(q.order), func(i int) bool { return q.order[i].age >= t.age })
		q.order = append(q.order, nil)
		copy(q.order[i+1:], q.order[i:])
		q.order[i] = t
	default: // InsertBottom
		q.order = append(q.order, t)
	}
	total := len(q.order)
	q.mux.Unlock()
	q.bus.Publish(Event{Kind: EventSizeChanged, TotalCount: total})
}

// Get returns the task for id.
func (q *Queue) Get(id string) (*Task, bool) {
	q.mux.Lock()
	defer q.mux.Unlock()
	t, ok := q.byID[id]
	return t, ok
}

// Cancel requests cancellation of id and all of its registered
// descendants (spec.md §5: "A parent operation that is cancelled also
// cancels its descendants").
func (q *Queue) Cancel(id string) error {
	q.mux.Lock()
	t, ok := q.byID[id]
	if !ok {
		q.mux.Unlock()
		return fmt.Errorf("queue: unknown task %q", id)
	}
	t.RequestCancel()
	descendants := q.descendantsLocked(id)
	q.mux.Unlock()
	for _, d := range descendants {
		d.RequestCancel()
	}
	return nil
}

func (q *Queue) descendantsLocked(id string) []*Task {
	var out []*Task
	seen := map[string]bool{id: true}
	frontier := []string{id}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		for _, t := range q.order {
			if !seen[t.ID] && parentOf(t) == cur {
				seen[t.ID] = true
				out = append(out, t)
				frontier = append(frontier, t.ID)
			}
		}
	}
	return out
}

// parentLinks records task-id -> parent-task-id for cascading
// cancellation (spec.md §5). Kept outside Task so the NZB archive
// format doesn't need to carry it for tasks with no children.
var parentLinks sync.Map

// SetParent records that child is spawned by parent, for cascading
// cancellation.
func SetParent(child, parent string) { parentLinks.Store(child, parent) }

func parentOf(t *Task) string {
	if v, ok := parentLinks.Load(t.ID); ok {
		return v.(string)
	}
	return ""
}

// Pause transitions a queued task to paused; running tasks are
// unaffected until their next suspension point.
func (q *Queue) Pause(id string) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	t, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("queue: unknown task %q", id)
	}
	if t.State == StateQueued {
		t.State = StatePaused
	}
	return nil
}

// Resume transitions a paused task back to queued.
func (q *Queue) Resume(id string) error {
	q.mux.Lock()
	defer q.mux.Unlock()
	t, ok := q.byID[id]
	if !ok {
		return fmt.Errorf("queue: unknown task %q", id)
	}
	if t.State == StatePaused {
		t.State = StateQueued
	}
	return nil
}

// SetActive marks a task running or not, publishing
// task-active-changed.
func (q *Queue) SetActive(id string, active bool) error {
	q.mux.Lock()
	t, ok := q.byID[id]
	if !ok {
		q.mux.Unlock()
		return fmt.Errorf("queue: unknown task %q", id)
	}
	if active {
		t.State = StateRunning
	} else if t.State == StateRunning {
		t.State = StateQueued
	}
	q.mux.Unlock()
	q.bus.Publish(Event{Kind: EventTaskActiveChanged, Task: t, Active: active})
	return nil
}

// Finish records a task's terminal state and removes it from the
// active order, publishing size-changed. Cancel-pending tasks finish
// as canceled regardless of the requested final state, completing the
// cancellation contract from spec.md §5.
func (q *Queue) Finish(id string, final State) error {
	q.mux.Lock()
	t, ok := q.byID[id]
	if !ok {
		q.mux.Unlock()
		return fmt.Errorf("queue: unknown task %q", id)
	}
	if t.State == StateCancelPending {
		final = StateCanceled
	}
	t.State = final
	for i, o := range q.order {
		if o.ID == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	total := len(q.order)
	q.mux.Unlock()
	q.bus.Publish(Event{Kind: EventSizeChanged, TotalCount: total})
	return nil
}

// ReportError publishes an error event without changing task state
// (spec.md §7: recoverable errors are reported on the affected task).
func (q *Queue) ReportError(message string) {
	q.bus.Publish(Event{Kind: EventError, Message: message})
}

// Stats computes current counts (spec.md §4.10).
func (q *Queue) Stats() Stats {
	q.mux.Lock()
	defer q.mux.Unlock()
	var s Stats
	for _, t := range q.order {
		switch t.State {
		case StateRunning:
			s.Running++
		case StateQueued, StatePaused, StateCancelPending:
			s.Queued++
		default:
			s.Stopped++
		}
		s.BytesRemaining += t.BytesTotal - t.BytesDone
	}
	s.BytesPerSecond = q.throughput.rate()
	if s.BytesPerSecond > 0 {
		s.ETA = time.Duration(float64(s.BytesRemaining)/s.BytesPerSecond) * time.Second
	}
	return s
}

// RecordProgress updates a task's byte progress and feeds the
// throughput tracker used by Stats' instantaneous rate and ETA.
func (q *Queue) RecordProgress(id string, bytesDone int64) {
	q.mux.Lock()
	t, ok := q.byID[id]
	if !ok {
		q.mux.Unlock()
		return
	}
	delta := bytesDone - t.BytesDone
	t.BytesDone = bytesDone
	if t.BytesTotal > 0 {
		t.Progress = 100 * float64(t.BytesDone) / float64(t.BytesTotal)
	}
	q.throughput.add(delta)
	q.mux.Unlock()
}

// throughputTracker keeps a short rolling window of byte deltas, each
// stamped with the time it was recorded, to compute an instantaneous
// bytes-per-second rate without the caller passing timestamps.
type throughputTracker struct {
	samples []int64
	times   []time.Time
}

func (t *throughputTracker) add(delta int64) {
	if delta < 0 {
		delta = 0
	}
	t.samples = append(t.samples, delta)
	t.times = append(t.times, time.Now())
	if len(t.samples) > 20 {
		t.samples = t.samples[len(t.samples)-20:]
		t.times = t.times[len(t.times)-20:]
	}
}

func (t *throughputTracker) rate() float64 {
	if len(t.samples) < 2 {
		return 0
	}
	elapsed := t.times[len(t.times)-1].Sub(t.times[0]).Seconds()
	if elapsed <= 0 {
		return 0
	}
	var sum int64
	for _, s := range t.samples[1:] {
		sum += s
	}
	return float64(sum) / elapsed
}
