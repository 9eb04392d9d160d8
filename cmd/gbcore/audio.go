package main

import (
	"math"
	"math/rand"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/owlonaut/gbcore/internal/apu"
)

const (
	// audioBufferSize is the number of stereo frames buffered between the
	// APU's push-based AudioSink and ebiten's pull-based io.Reader.
	audioBufferSize = 4096

	// maxBufferedFrames caps how far the buffer can grow if ebiten falls
	// behind, so a stalled player doesn't leak memory across a long run.
	maxBufferedFrames = audioBufferSize * 4

	// highPassCutoff approximates the DC-blocking filter real Game Boy
	// output hardware has, as a one-pole coefficient.
	highPassCutoff = 0.999

	// lowPassCutoff softens the raw square/noise waveforms, approximating
	// the cartridge+speaker's anti-aliasing.
	lowPassCutoff = 0.85

	// ditherAmplitude is the peak amplitude of the triangular dither noise,
	// in int16 units.
	ditherAmplitude = 2
)

// AudioOptions toggles the optional post-processing stages between the
// APU's raw mix and what actually reaches the speakers.
type AudioOptions struct {
	EnableLowPass  bool
	EnableHighPass bool
	EnableSoftClip bool
	EnableDither   bool
}

// AudioPlayer implements emulator.AudioSink, buffering and lightly
// post-processing the APU's stereo stream for ebiten playback.
type AudioPlayer struct {
	opts         AudioOptions
	audioContext *audio.Context
	audioPlayer  *audio.Player

	buffer []apu.Sample

	hpPrevInL, hpPrevInR             float64
	hpPrevOutL, hpPrevOutR           float64
	lpPrevL, lpPrevR                float64
	rng                             *rand.Rand
}

// NewAudioPlayer creates a new audio player at the APU's native sample rate.
func NewAudioPlayer(apuInstance *apu.APU, opts AudioOptions) (*AudioPlayer, error) {
	_ = apuInstance // kept as a parameter for symmetry with the emulator's other peripheral constructors
	audioContext := audio.NewContext(apu.SampleRate)

	ap := &AudioPlayer{
		opts:         opts,
		audioContext: audioContext,
		buffer:       make([]apu.Sample, 0, audioBufferSize),
		rng:          rand.New(rand.NewSource(1)), //nolint:gosec // dither noise, not cryptographic
	}

	player, err := audioContext.NewPlayer(&infiniteStream{player: ap})
	if err != nil {
		return nil, err
	}
	ap.audioPlayer = player

	return ap, nil
}

// Start starts audio playback.
func (ap *AudioPlayer) Start() {
	if ap.audioPlayer != nil {
		ap.audioPlayer.Play()
	}
}

// Stop stops audio playback.
func (ap *AudioPlayer) Stop() {
	if ap.audioPlayer != nil {
		ap.audioPlayer.Pause()
	}
}

// Append implements emulator.AudioSink, applying the configured filters to
// each sample as it arrives and buffering it for Read to consume.
func (ap *AudioPlayer) Append(s apu.Sample) {
	left, right := float64(s.L), float64(s.R)

	if ap.opts.EnableHighPass {
		left, right = ap.highPass(left, right)
	}
	if ap.opts.EnableLowPass {
		left, right = ap.lowPass(left, right)
	}
	if ap.opts.EnableDither {
		left += ap.ditherNoise()
		right += ap.ditherNoise()
	}
	if ap.opts.EnableSoftClip {
		left, right = softClip(left), softClip(right)
	}

	ap.buffer = append(ap.buffer, apu.Sample{L: clampInt16(left), R: clampInt16(right)})
	if len(ap.buffer) > maxBufferedFrames {
		ap.buffer = ap.buffer[len(ap.buffer)-maxBufferedFrames:]
	}
}

// highPass removes DC offset with a one-pole filter.
func (ap *AudioPlayer) highPass(left, right float64) (float64, float64) {
	outL := highPassCutoff * (ap.hpPrevOutL + left - ap.hpPrevInL)
	outR := highPassCutoff * (ap.hpPrevOutR + right - ap.hpPrevInR)
	ap.hpPrevInL = left
	ap.hpPrevInR = right
	ap.hpPrevOutL = outL
	ap.hpPrevOutR = outR
	return outL, outR
}

// lowPass smooths sharp transitions with a one-pole IIR filter.
func (ap *AudioPlayer) lowPass(left, right float64) (float64, float64) {
	outL := ap.lpPrevL + lowPassCutoff*(left-ap.lpPrevL)
	outR := ap.lpPrevR + lowPassCutoff*(right-ap.lpPrevR)
	ap.lpPrevL = outL
	ap.lpPrevR = outR
	return outL, outR
}

// ditherNoise returns a small triangular-distributed offset.
func (ap *AudioPlayer) ditherNoise() float64 {
	return (ap.rng.Float64() - ap.rng.Float64()) * ditherAmplitude
}

// softClip applies a tanh-style soft saturation instead of hard clamping.
func softClip(v float64) float64 {
	const ceiling = 32767.0
	return ceiling * math.Tanh(v/ceiling)
}

func clampInt16(v float64) int16 {
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}

// Read reads audio samples for playback (implements io.Reader).
func (ap *AudioPlayer) Read(buf []byte) (int, error) {
	numFrames := len(buf) / 4 // 4 bytes per stereo frame (2 channels x 2 bytes)

	if len(ap.buffer) < numFrames {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}

	for i := 0; i < numFrames; i++ {
		s := ap.buffer[i]
		buf[i*4] = byte(s.L)
		buf[i*4+1] = byte(s.L >> 8)
		buf[i*4+2] = byte(s.R)
		buf[i*4+3] = byte(s.R >> 8)
	}

	ap.buffer = ap.buffer[numFrames:]
	return len(buf), nil
}

// infiniteStream wraps AudioPlayer to implement an infinite audio stream.
type infiniteStream struct {
	player *AudioPlayer
}

// Read implements io.Reader for infinite audio streaming.
func (s *infiniteStream) Read(buf []byte) (int, error) {
	return s.player.Read(buf)
}
