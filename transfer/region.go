package transfer

import (
	"math"
	"strconv"
	"sync/atomic"

	"github.com/wippyai/sassbridge/errors"
)

// DefaultCapacity is the shared buffer size used when none is configured.
const DefaultCapacity = 8 * 1024

// MaxPayload is the largest payload the signal word can announce.
// The word carries length+1 so that an empty payload still reads as ready.
const MaxPayload = math.MaxInt32 - 1

// aborted is stored in the signal word when an exchange cannot complete.
const aborted int32 = -1

// ErrAborted is returned by Receive when the announcing side gave up.
var ErrAborted = errors.New(errors.PhaseTransfer, errors.KindCallback).
	Detail("exchange aborted by the announcing side").
	Build()

// Region is a fixed-capacity byte buffer plus a signal word, shared by one
// announcing side (host) and one receiving side (executor). It is allocated
// once and reused for every exchange.
//
// At most one request may hold the lease at a time; announcements made on
// behalf of any other request are rejected.
type Region struct {
	buf    []byte
	signal *Signal
	owner  atomic.Uint64

	announcements atomic.Uint64
}

// NewRegion allocates a region with the given buffer capacity.
// A non-positive capacity selects DefaultCapacity.
func NewRegion(capacity int) *Region {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Region{
		buf:    make([]byte, capacity),
		signal: newSignal(),
	}
}

// Cap returns the buffer capacity B.
func (r *Region) Cap() int {
	return len(r.buf)
}

// Signal exposes the signal word.
func (r *Region) Signal() *Signal {
	return r.signal
}

// Announcements returns how many chunks have been published so far.
func (r *Region) Announcements() uint64 {
	return r.announcements.Load()
}

// Acquire leases the region to request id. Ids must be non-zero.
func (r *Region) Acquire(id uint64) error {
	if id == 0 {
		return errors.InvalidInput(errors.PhaseTransfer, "lease id must be non-zero")
	}
	if !r.owner.CompareAndSwap(0, id) {
		return errors.New(errors.PhaseTransfer, errors.KindLease).
			Detail("region held by request %d, wanted by %d", r.owner.Load(), id).
			Build()
	}
	return nil
}

// Release gives the lease back. Releasing a lease not held by id is a no-op.
func (r *Region) Release(id uint64) {
	r.owner.CompareAndSwap(id, 0)
}

// Owner returns the request id currently holding the lease, or zero.
func (r *Region) Owner() uint64 {
	return r.owner.Load()
}

// Announce copies payload[offset:offset+Cap()] into the buffer and then
// publishes the total payload length, waking the receiver. Never more than
// Cap() bytes are written per call.
func (r *Region) Announce(id uint64, payload []byte, offset int) error {
	if owner := r.owner.Load(); owner != id {
		return errors.New(errors.PhaseTransfer, errors.KindLease).
			Path("request", strconv.FormatUint(id, 10)).
			Detail("region leased to request %d", owner).
			Build()
	}
	if len(payload) > MaxPayload {
		return errors.Overflow(errors.PhaseTransfer, len(payload), "signal word")
	}
	if offset < 0 || offset > len(payload) || (offset == len(payload) && offset != 0) {
		return errors.OutOfBounds(errors.PhaseTransfer, []string{"offset"}, offset, len(payload))
	}

	end := min(offset+len(r.buf), len(payload))
	copy(r.buf, payload[offset:end])
	r.announcements.Add(1)
	r.signal.Store(int32(len(payload)) + 1)
	return nil
}

// Abort wakes a receiver parked in Receive without a chunk. The receiver
// gets ErrAborted. It is used when Announce fails, so that the receiving
// side is never left waiting.
func (r *Region) Abort() {
	r.signal.Store(aborted)
}

// Receive performs one full exchange from the receiving side. It resets the
// signal, calls request(0) to ask for the payload, parks until the first
// chunk is published and keeps asking for the next offset until the whole
// payload has been copied out. request must not block on the announcement
// itself.
func (r *Region) Receive(request func(offset int)) ([]byte, error) {
	r.signal.Reset()
	request(0)
	word := r.signal.Wait()
	if word == aborted {
		return nil, ErrAborted
	}
	total := int(word) - 1

	out := make([]byte, total)
	offset := 0
	for {
		n := min(len(r.buf), total-offset)
		copy(out[offset:offset+n], r.buf[:n])
		offset += n
		if offset >= total {
			return out, nil
		}

		r.signal.Reset()
		request(offset)
		if r.signal.Wait() == aborted {
			return nil, ErrAborted
		}
	}
}
