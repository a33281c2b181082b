// Package transfer moves byte payloads of any length through a single
// fixed-capacity buffer shared between two goroutines.
//
// # Protocol
//
// The receiving side resets the signal word to zero, asks the announcing
// side for the payload (out of band, e.g. over a channel) and parks on the
// word. The announcing side copies at most Cap() bytes into the buffer and
// then stores len(payload)+1 into the word, waking the receiver. The
// receiver copies min(Cap(), remaining) bytes out and, if bytes remain,
// resets the word and asks for the next offset.
//
//	receiver                         announcer
//	────────                         ─────────
//	Reset(); request(0)   ───────▶   Announce(payload, 0)
//	Wait()                ◀───────   Store(len+1)
//	copy chunk 0
//	Reset(); request(B)   ───────▶   Announce(payload, B)
//	Wait()                ◀───────   Store(len+1)
//	copy chunk 1 ...
//
// Exactly one chunk moves per round-trip; the buffer is never double-buffered.
//
// # Leases
//
// A Region belongs to one request at a time. The executor acquires the
// lease before running a request and releases it afterwards; Announce
// rejects calls made for any other request id.
package transfer
