// Package digest computes chained SHA-1 fingerprints of the emulator's
// video and audio output, for regression tests that want to assert "this
// ROM still produces exactly the pixels/samples it used to" without
// storing a full frame-by-frame reference recording.
package digest

import (
	"crypto/sha1"
	"fmt"

	"github.com/owlonaut/gbcore/internal/emulator"
	"github.com/owlonaut/gbcore/internal/ppu"
)

var _ emulator.VideoSink = (*Video)(nil)

// Video implements emulator.VideoSink, folding each frame into a running
// digest: every frame's hash is seeded with the previous frame's digest, so
// the final value depends on the exact sequence of frames, not just their
// multiset. A single pixel differing on frame 100 of a 200-frame run
// changes the digest of every frame after it.
type Video struct {
	digest [sha1.Size]byte
	pixels []byte
}

const bytesPerPixel = 3

// NewVideo returns a Video digest ready to receive frames via Append.
func NewVideo() *Video {
	return &Video{
		pixels: make([]byte, sha1.Size+ppu.ScreenWidth*ppu.ScreenHeight*bytesPerPixel),
	}
}

// Append folds one frame into the running digest.
func (v *Video) Append(f ppu.Frame) {
	copy(v.pixels, v.digest[:])
	for i, c := range f {
		offset := sha1.Size + i*bytesPerPixel
		v.pixels[offset] = c.R
		v.pixels[offset+1] = c.G
		v.pixels[offset+2] = c.B
	}
	v.digest = sha1.Sum(v.pixels)
}

// Hash returns the current digest as a hex string.
func (v *Video) Hash() string {
	return fmt.Sprintf("%x", v.digest)
}

// Reset clears the digest back to its zero state, without requiring a new
// Video (and its backing buffer) to be allocated.
func (v *Video) Reset() {
	v.digest = [sha1.Size]byte{}
}
