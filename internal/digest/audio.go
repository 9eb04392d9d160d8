package digest

import (
	"crypto/sha1"
	"fmt"

	"github.com/owlonaut/gbcore/internal/apu"
	"github.com/owlonaut/gbcore/internal/emulator"
)

var _ emulator.AudioSink = (*Audio)(nil)

// audioBufferSamples is how many stereo samples accumulate before each
// partial digest is folded in; arbitrary beyond "bigger than sha1.Size".
const audioBufferSamples = 512

// Audio implements emulator.AudioSink, periodically folding batches of
// samples into a running SHA-1 digest the same way Video chains frames.
type Audio struct {
	digest [sha1.Size]byte
	buffer []byte
	count  int
}

// NewAudio returns an Audio digest ready to receive samples via Append.
func NewAudio() *Audio {
	return &Audio{
		buffer: make([]byte, sha1.Size+audioBufferSamples*4),
		count:  sha1.Size,
	}
}

// Append folds one stereo sample into the running digest, flushing a
// partial digest every audioBufferSamples samples.
func (a *Audio) Append(s apu.Sample) {
	a.buffer[a.count] = byte(s.L)
	a.buffer[a.count+1] = byte(s.L >> 8)
	a.buffer[a.count+2] = byte(s.R)
	a.buffer[a.count+3] = byte(s.R >> 8)
	a.count += 4

	if a.count >= len(a.buffer) {
		a.flush()
	}
}

func (a *Audio) flush() {
	a.digest = sha1.Sum(a.buffer)
	copy(a.buffer, a.digest[:])
	a.count = sha1.Size
}

// Hash returns the current digest as a hex string, flushing any partially
// filled buffer first so trailing samples aren't silently dropped.
func (a *Audio) Hash() string {
	if a.count > sha1.Size {
		a.flush()
	}
	return fmt.Sprintf("%x", a.digest)
}

// Reset clears the digest back to its zero state.
func (a *Audio) Reset() {
	a.digest = [sha1.Size]byte{}
	clear(a.buffer)
	a.count = sha1.Size
}
