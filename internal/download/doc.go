// Package download mirrors a range-partitioned hash corpus into a
// local database using exactly two goroutines.
//
// A coordinating goroutine owns two FIFO queues. The in-flight queue
// holds units whose range is being fetched; the completed queue holds
// units whose payload has arrived but has not been written yet. A
// fetch goroutine drives the HTTP transfers and marks units complete.
//
// The queues are not lock-protected per field. Instead the two
// goroutines alternate ownership through a two-state handshake: the
// fetch goroutine touches units only during its phase, the
// coordinating goroutine drains and refills only during its own, and
// the handshake's mutex carries the happens-before edge between them.
// Completed units are shuffled off the front of the in-flight queue
// strictly in range order, so the output database is sorted even
// though transfers finish out of order. While the fetch goroutine is
// back on the network, the coordinating goroutine converts and writes
// the shuffled units, which is where the pipeline overlaps disk and
// network work.
package download
