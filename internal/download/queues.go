package download

import "github.com/GriffinCanCode/hibp/internal/record"

// Unit is one range's fetch, from admission to write-out. The fetch
// goroutine fills Body and sets Complete exactly once during its
// handshake phase; the coordinating goroutine reads them only after
// observing Complete during its own phase. Queues hold *Unit so a
// unit's address stays stable while the fetcher's transfer table
// refers to it.
type Unit struct {
	Prefix   uint32
	Body     []byte
	Complete bool
}

// Range renders the unit's range prefix in wire form.
func (u *Unit) Range() string { return record.PrefixHex(u.Prefix) }

// queues is the pipeline's shared queue state. All mutation happens on
// the coordinating goroutine during its handshake phase; the fetch
// goroutine only reads the in-flight front during its phase.
type queues struct {
	inflight  []*Unit
	completed []*Unit
	next      uint32 // next range prefix to admit
	limit     uint32 // exclusive admission bound
}

func newQueues(start, limit uint32) *queues {
	return &queues{next: start, limit: limit}
}

// admit tops the in-flight queue up to max units, submitting each new
// unit's transfer before queueing it. Ranges are admitted strictly in
// increasing order and never at or past the admission bound.
func (q *queues) admit(max int, submit func(*Unit) error) error {
	for len(q.inflight) < max && q.next < q.limit {
		u := &Unit{Prefix: q.next}
		if err := submit(u); err != nil {
			return err
		}
		q.inflight = append(q.inflight, u)
		q.next++
	}
	return nil
}

// shuffleCompleted moves every leading complete unit from the in-flight
// queue to the completed queue, stopping at the first incomplete unit.
// Stopping there is what preserves range order in the output: a later
// range never overtakes an earlier one still in flight.
func (q *queues) shuffleCompleted() {
	for len(q.inflight) > 0 && q.inflight[0].Complete {
		q.completed = append(q.completed, q.inflight[0])
		q.inflight[0] = nil
		q.inflight = q.inflight[1:]
	}
}

// popCompleted hands the next completed unit to the write stage.
func (q *queues) popCompleted() (*Unit, bool) {
	if len(q.completed) == 0 {
		return nil, false
	}
	u := q.completed[0]
	q.completed[0] = nil
	q.completed = q.completed[1:]
	return u, true
}

// front returns the oldest in-flight unit, or nil when the queue is
// empty. Called by the fetch goroutine during its phase to decide when
// to hand control back.
func (q *queues) front() *Unit {
	if len(q.inflight) == 0 {
		return nil
	}
	return q.inflight[0]
}

// pending reports whether any admitted range is still unwritten.
func (q *queues) pending() bool { return len(q.inflight) > 0 }

// drain discards every queued unit. Part of the abort sequence, after
// transfer handles have been released.
func (q *queues) drain() {
	q.inflight = nil
	q.completed = nil
}
