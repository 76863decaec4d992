package board

import "sync/atomic"

// Latest discards out-of-order responses: only the most recently begun
// request may apply its result.
type Latest struct {
	seq atomic.Uint64
}

// Begin issues a ticket for a new request, superseding earlier ones.
func (l *Latest) Begin() uint64 {
	return l.seq.Add(1)
}

// Current reports whether ticket belongs to the newest request.
func (l *Latest) Current(ticket uint64) bool {
	return l.seq.Load() == ticket
}
