package bridge

import (
	"context"
	"sync"
)

// Pending is the future of one request. It settles exactly once.
type Pending struct {
	done   chan struct{}
	result []byte
	err    error
	once   sync.Once
	id     uint64
}

func newPending(id uint64) *Pending {
	return &Pending{id: id, done: make(chan struct{})}
}

// ID returns the request id, unique within its Bridge.
func (p *Pending) ID() uint64 {
	return p.id
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request settles or ctx ends. A ctx ending does not
// abort the request; it keeps running to completion in the background.
func (p *Pending) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled value. It must only be called after Done.
func (p *Pending) Result() ([]byte, error) {
	return p.result, p.err
}

// settle reports whether this call was the one that settled p.
func (p *Pending) settle(result []byte, err error) bool {
	settled := false
	p.once.Do(func() {
		p.result, p.err = result, err
		settled = true
		close(p.done)
	})
	return settled
}
