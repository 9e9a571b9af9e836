package testutil

import "sync"

// Reader is a scripted card reader. Each Present call queues one read
// result; TryReadIdentifier consumes them in order and fails when the
// script is exhausted.
type Reader struct {
	mu    sync.Mutex
	reads []readResult
}

type readResult struct {
	id string
	ok bool
}

// Present queues a successful read of id.
func (r *Reader) Present(id string) {
	r.mu.Lock()
	r.reads = append(r.reads, readResult{id: id, ok: true})
	r.mu.Unlock()
}

// PresentFailure queues a failed read.
func (r *Reader) PresentFailure() {
	r.mu.Lock()
	r.reads = append(r.reads, readResult{})
	r.mu.Unlock()
}

// TryReadIdentifier implements the card reader contract.
func (r *Reader) TryReadIdentifier() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reads) == 0 {
		return "", false
	}
	res := r.reads[0]
	r.reads = r.reads[1:]
	return res.id, res.ok
}
