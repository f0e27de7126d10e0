package render

import (
	"sync/atomic"
)

// FrameRingSize is the number of slots in the frame ring. At 30fps,
// 16 frames is roughly half a second of slack before the producer
// starts dropping, enough to ride out recorder attach latency and
// encoder spikes.
const FrameRingSize = 16

// FrameRing decouples frame production from sink writes with a
// lock-free single-producer single-consumer ring. Frames are raw RGBA
// at a fixed size; when the ring is full new frames are dropped rather
// than blocking the render loop.
type FrameRing struct {
	frames    [FrameRingSize][]byte
	seqs      [FrameRingSize]uint64
	readIdx   uint32 // atomic, consumer index
	writeIdx  uint32 // atomic, producer index
	frameSize int

	framesWritten uint64
	framesDropped uint64
	framesRead    uint64
}

// NewFrameRing pre-allocates all slots at the given frame size.
func NewFrameRing(frameSize int) *FrameRing {
	rb := &FrameRing{frameSize: frameSize}
	for i := 0; i < FrameRingSize; i++ {
		rb.frames[i] = make([]byte, frameSize)
	}
	return rb
}

// FrameSize returns the fixed slot size in bytes.
func (rb *FrameRing) FrameSize() int {
	return rb.frameSize
}

// TryWrite copies a frame into the ring. Returns false when the frame
// has the wrong size or the ring is full; a full ring counts a drop.
// Producer side only.
func (rb *FrameRing) TryWrite(frame []byte, seq uint64) bool {
	if len(frame) != rb.frameSize {
		return false
	}

	currentWrite := atomic.LoadUint32(&rb.writeIdx)
	nextWrite := (currentWrite + 1) % FrameRingSize

	if nextWrite == atomic.LoadUint32(&rb.readIdx) {
		atomic.AddUint64(&rb.framesDropped, 1)
		return false
	}

	copy(rb.frames[currentWrite], frame)
	rb.seqs[currentWrite] = seq

	atomic.StoreUint32(&rb.writeIdx, nextWrite)
	atomic.AddUint64(&rb.framesWritten, 1)
	return true
}

// TryRead returns the next frame slot and its sequence, or nil when
// the ring is empty. The returned slice aliases the slot; the consumer
// must finish with it before the producer laps the ring, which the
// ring depth makes a half-second grace at target rate. Consumer side
// only.
func (rb *FrameRing) TryRead() ([]byte, uint64) {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	writeIdx := atomic.LoadUint32(&rb.writeIdx)

	if readIdx == writeIdx {
		return nil, 0
	}

	frame := rb.frames[readIdx]
	seq := rb.seqs[readIdx]

	atomic.StoreUint32(&rb.readIdx, (readIdx+1)%FrameRingSize)
	atomic.AddUint64(&rb.framesRead, 1)
	return frame, seq
}

// Available returns the number of frames waiting to be read.
func (rb *FrameRing) Available() int {
	readIdx := atomic.LoadUint32(&rb.readIdx)
	writeIdx := atomic.LoadUint32(&rb.writeIdx)

	if writeIdx >= readIdx {
		return int(writeIdx - readIdx)
	}
	return int(FrameRingSize - readIdx + writeIdx)
}

// GetStats returns cumulative written, dropped, and read counts.
func (rb *FrameRing) GetStats() (written, dropped, read uint64) {
	return atomic.LoadUint64(&rb.framesWritten),
		atomic.LoadUint64(&rb.framesDropped),
		atomic.LoadUint64(&rb.framesRead)
}

// Reset clears indices and stats for a session restart.
func (rb *FrameRing) Reset() {
	atomic.StoreUint32(&rb.readIdx, 0)
	atomic.StoreUint32(&rb.writeIdx, 0)
	atomic.StoreUint64(&rb.framesWritten, 0)
	atomic.StoreUint64(&rb.framesDropped, 0)
	atomic.StoreUint64(&rb.framesRead, 0)
}
