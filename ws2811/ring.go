package ws2811

import "unsafe"

// RingSize is the pulse ring capacity in slots. The ring's byte size must be a
// power of two so a DMA read ring can wrap on it.
const RingSize = 128

const ringBytes = RingSize * 2

var _ [0]struct{} = [RingSize & (RingSize - 1)]struct{}{}

// ringStore holds the ring with room to align it to its own size.
var ringStore [2 * RingSize]uint16

// alignedRing returns the ringBytes-aligned ring inside ringStore.
func alignedRing() *[RingSize]uint16 {
	addr := uintptr(unsafe.Pointer(&ringStore[0]))
	off := (ringBytes - addr%ringBytes) % ringBytes / 2
	return (*[RingSize]uint16)(ringStore[off : off+RingSize])
}

// pulseRing is the producer's view of the ring. The write count is owned by
// the refill producer. The transfer count belongs to the engine and is only
// read here.
type pulseRing struct {
	slots   *[RingSize]uint16
	written uint32
}

func (r *pulseRing) reset() { r.written = 0 }

// put writes code at the write cursor and advances it.
func (r *pulseRing) put(code uint16) {
	r.slots[r.written%RingSize] = code
	r.written++
}

// cursor returns the next slot to be written.
func (r *pulseRing) cursor() int { return int(r.written % RingSize) }

// avail returns the free slots given the engine's transfer count. ok is false
// when the engine has read past the write cursor, an underrun.
func (r *pulseRing) avail(transferred uint32) (n uint32, ok bool) {
	inflight := int32(r.written - transferred)
	if inflight < 0 {
		return RingSize, false
	}
	return RingSize - uint32(inflight), true
}
