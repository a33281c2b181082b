package transfer

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	sberrors "github.com/wippyai/sassbridge/errors"
)

// exchange runs one Receive against an announcer goroutine and returns the
// reassembled bytes plus the number of requests the receiver made.
func exchange(t *testing.T, r *Region, id uint64, payload []byte) ([]byte, int) {
	t.Helper()

	offsets := make(chan int)
	errs := make(chan error, 1)
	go func() {
		for off := range offsets {
			if err := r.Announce(id, payload, off); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	requests := 0
	got, err := r.Receive(func(offset int) {
		requests++
		offsets <- offset
	})
	close(offsets)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("announce: %v", err)
	}
	return got, requests
}

func TestRegion_RoundTrip(t *testing.T) {
	const capacity = 64

	tests := []struct {
		name     string
		length   int
		requests int
	}{
		{"empty", 0, 1},
		{"one byte", 1, 1},
		{"just under capacity", capacity - 1, 1},
		{"exactly capacity", capacity, 1},
		{"capacity plus one", capacity + 1, 2},
		{"exact multiple", 3 * capacity, 3},
		{"three chunks plus tail", 3*capacity + 17, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegion(capacity)
			if err := r.Acquire(7); err != nil {
				t.Fatalf("acquire: %v", err)
			}
			defer r.Release(7)

			payload := make([]byte, tt.length)
			for i := range payload {
				payload[i] = byte(i*31 + 7)
			}

			got, requests := exchange(t, r, 7, payload)
			if !bytes.Equal(got, payload) {
				t.Fatalf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
			}
			if requests != tt.requests {
				t.Errorf("requests = %d, want %d", requests, tt.requests)
			}
			if n := r.Announcements(); n != uint64(tt.requests) {
				t.Errorf("announcements = %d, want %d", n, tt.requests)
			}
		})
	}
}

func TestRegion_DefaultCapacity(t *testing.T) {
	r := NewRegion(0)
	if r.Cap() != DefaultCapacity {
		t.Errorf("Cap() = %d, want %d", r.Cap(), DefaultCapacity)
	}
}

func TestRegion_ChunkNeverExceedsCapacity(t *testing.T) {
	r := NewRegion(16)
	if err := r.Acquire(1); err != nil {
		t.Fatal(err)
	}
	// Bytes beyond the buffer must be untouched by any announcement.
	payload := bytes.Repeat([]byte{0xAB}, 100)
	if err := r.Announce(1, payload, 0); err != nil {
		t.Fatalf("announce: %v", err)
	}
	if len(r.buf) != 16 {
		t.Fatalf("buffer grew to %d", len(r.buf))
	}
	if v := r.Signal().Load(); v != 101 {
		t.Errorf("signal = %d, want 101", v)
	}
}

func TestRegion_Lease(t *testing.T) {
	r := NewRegion(8)

	if err := r.Acquire(0); err == nil {
		t.Error("expected error for zero lease id")
	}
	if err := r.Acquire(1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	err := r.Acquire(2)
	var se *sberrors.Error
	if !errors.As(err, &se) || se.Kind != sberrors.KindLease {
		t.Fatalf("second acquire = %v, want lease error", err)
	}

	if err := r.Announce(2, []byte("x"), 0); err == nil {
		t.Error("announce for non-owner should fail")
	}
	if r.Announcements() != 0 {
		t.Error("rejected announce must not publish")
	}

	r.Release(2)
	if r.Owner() != 1 {
		t.Errorf("release by non-owner changed owner to %d", r.Owner())
	}
	r.Release(1)
	if r.Owner() != 0 {
		t.Errorf("owner = %d after release", r.Owner())
	}
}

func TestRegion_AnnounceOffsetBounds(t *testing.T) {
	r := NewRegion(8)
	if err := r.Acquire(3); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		payload []byte
		offset  int
		wantErr bool
	}{
		{"negative", []byte("abc"), -1, true},
		{"past end", []byte("abc"), 4, true},
		{"at end", []byte("abc"), 3, true},
		{"empty at zero", nil, 0, false},
		{"middle", []byte("abcdefghij"), 8, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Announce(3, tt.payload, tt.offset)
			if (err != nil) != tt.wantErr {
				t.Errorf("Announce() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignal_WaitParksUntilStore(t *testing.T) {
	s := newSignal()

	var wg sync.WaitGroup
	got := make(chan int32, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		got <- s.Wait()
	}()

	select {
	case v := <-got:
		t.Fatalf("Wait returned %d before Store", v)
	case <-time.After(20 * time.Millisecond):
	}

	s.Store(42)
	wg.Wait()
	if v := <-got; v != 42 {
		t.Errorf("Wait() = %d, want 42", v)
	}

	s.Reset()
	if s.Load() != 0 {
		t.Error("Reset did not clear the word")
	}
}

func TestRegion_AbortWakesReceiver(t *testing.T) {
	const capacity = 8
	payload := bytes.Repeat([]byte("x"), 3*capacity)

	tests := []struct {
		name    string
		abortAt int
	}{
		{"before first chunk", 0},
		{"between chunks", capacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegion(capacity)
			if err := r.Acquire(1); err != nil {
				t.Fatal(err)
			}

			done := make(chan error, 1)
			go func() {
				_, err := r.Receive(func(offset int) {
					go func() {
						if offset == tt.abortAt {
							r.Abort()
							return
						}
						_ = r.Announce(1, payload, offset)
					}()
				})
				done <- err
			}()

			select {
			case err := <-done:
				if !errors.Is(err, ErrAborted) {
					t.Errorf("err = %v, want ErrAborted", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("receiver stayed parked after Abort")
			}
		})
	}
}
