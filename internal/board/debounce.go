package board

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benvon/taskboard/internal/models"
)

// DefaultEditDebounce is the quiet interval before a field edit is persisted
const DefaultEditDebounce = 500 * time.Millisecond

// FlushFunc persists a batch of edits. snapshot is the task as it was before
// the first edit of the batch; fields is the union of edited fields.
type FlushFunc func(snapshot models.Task, fields []models.TaskField)

// Debouncer coalesces rapid edits of the same task into one remote update.
// Each Schedule restarts the task's quiet interval.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingEdit
	wg      sync.WaitGroup
}

type pendingEdit struct {
	timer    *time.Timer
	snapshot models.Task
	fields   []models.TaskField
	flush    FlushFunc
	canceled bool
}

// NewDebouncer creates a debouncer with the given quiet interval
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultEditDebounce
	}
	return &Debouncer{delay: delay, pending: make(map[uuid.UUID]*pendingEdit)}
}

// Schedule records an edit of fields on task id. snapshot is kept only from
// the first edit of a batch; flush from the latest edit wins.
func (d *Debouncer) Schedule(id uuid.UUID, snapshot models.Task, fields []models.TaskField, flush FlushFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[id]; ok && p.timer.Stop() {
		for _, f := range fields {
			if !slices.Contains(p.fields, f) {
				p.fields = append(p.fields, f)
			}
		}
		p.flush = flush
		p.timer.Reset(d.delay)
		return
	}

	p := &pendingEdit{
		snapshot: snapshot.Clone(),
		fields:   slices.Clone(fields),
		flush:    flush,
	}
	d.wg.Add(1)
	p.timer = time.AfterFunc(d.delay, func() { d.fire(id, p) })
	d.pending[id] = p
}

func (d *Debouncer) fire(id uuid.UUID, p *pendingEdit) {
	defer d.wg.Done()

	d.mu.Lock()
	if p.canceled {
		d.mu.Unlock()
		return
	}
	if d.pending[id] == p {
		delete(d.pending, id)
	}
	snapshot, fields, flush := p.snapshot, p.fields, p.flush
	d.mu.Unlock()

	flush(snapshot, fields)
}

// Pending reports whether an edit of task id is waiting to be flushed
func (d *Debouncer) Pending(id uuid.UUID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	return ok
}

// Cancel drops a waiting edit without flushing it
func (d *Debouncer) Cancel(id uuid.UUID) bool {
	d.mu.Lock()
	p, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
		p.canceled = true
	}
	d.mu.Unlock()

	if ok && p.timer.Stop() {
		d.wg.Done()
		return true
	}
	return false
}

// Flush persists every waiting edit now
func (d *Debouncer) Flush() {
	d.mu.Lock()
	var ready []*pendingEdit
	for id, p := range d.pending {
		if p.timer.Stop() {
			delete(d.pending, id)
			ready = append(ready, p)
		}
	}
	d.mu.Unlock()

	for _, p := range ready {
		p.flush(p.snapshot, p.fields)
		d.wg.Done()
	}
}

// Wait blocks until no edit is waiting or flushing
func (d *Debouncer) Wait() {
	d.wg.Wait()
}
