package download

import (
	"sync"
	"time"
)

// turn says which goroutine currently owns the queues.
type turn int

const (
	turnFetch   turn = iota // fetch goroutine may mark units and read the front
	turnProcess             // coordinating goroutine may shuffle and admit
)

// handshake is the alternation protocol between the two goroutines. It
// is a strict two-phase handover, not a general lock: each side blocks
// until the other yields, and queue access outside one's own turn is a
// bug.
type handshake struct {
	mu      sync.Mutex
	cond    *sync.Cond
	turn    turn
	stopped bool
}

func newHandshake() *handshake {
	h := &handshake{turn: turnFetch}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// awaitProcess blocks the coordinating goroutine until the fetch side
// yields its turn. The wait is bounded: a fetch side that stops making
// progress for the whole timeout is reported as ErrCoordinationTimeout
// rather than hanging the run.
func (h *handshake) awaitProcess(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	// The timer takes the mutex before broadcasting so the wakeup
	// cannot slip between the deadline check and the wait below.
	timer := time.AfterFunc(timeout, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.cond.Broadcast()
	})
	defer timer.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	for h.turn != turnProcess {
		if !time.Now().Before(deadline) {
			return ErrCoordinationTimeout
		}
		h.cond.Wait()
	}
	return nil
}

// finishProcess returns the turn to the fetch goroutine.
func (h *handshake) finishProcess() {
	h.mu.Lock()
	h.turn = turnFetch
	h.mu.Unlock()
	h.cond.Broadcast()
}

// handOff yields the fetch goroutine's turn and blocks until the
// coordinating goroutine hands it back. Returns false if the pipeline
// was interrupted while waiting.
func (h *handshake) handOff() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turn = turnProcess
	h.cond.Broadcast()
	for h.turn != turnFetch && !h.stopped {
		h.cond.Wait()
	}
	return !h.stopped
}

// interrupt releases a fetch goroutine parked in handOff. Called during
// shutdown after the coordinating loop has exited.
func (h *handshake) interrupt() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cond.Broadcast()
}
