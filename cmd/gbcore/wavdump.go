package main

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/owlonaut/gbcore/internal/apu"
)

// maxDumpSamples caps a WAV recording at roughly 5 minutes, so a forgotten
// --dump-wav flag on a long play session doesn't grow without bound.
const maxDumpSamples = apu.SampleRate * 60 * 5

// wavRecorder implements emulator.AudioSink, buffering samples for a later
// one-shot WAV export. Recording stops silently once maxDumpSamples is hit;
// whatever was captured up to that point is still written on Save.
type wavRecorder struct {
	samples []apu.Sample
}

func newWAVRecorder() *wavRecorder {
	return &wavRecorder{samples: make([]apu.Sample, 0, apu.SampleRate)}
}

func (r *wavRecorder) Append(s apu.Sample) {
	if len(r.samples) >= maxDumpSamples {
		return
	}
	r.samples = append(r.samples, s)
}

// Save encodes the recorded samples as a 16-bit stereo PCM WAV file.
func (r *wavRecorder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer f.Close()

	encoder := wav.NewEncoder(f, apu.SampleRate, 16, 2, 1)

	data := make([]int, len(r.samples)*2)
	for i, s := range r.samples {
		data[i*2] = int(s.L)
		data[i*2+1] = int(s.R)
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: apu.SampleRate},
		Data:   data,
	}

	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	return encoder.Close()
}

// multiAudioSink fans a sample out to every attached sink, so the live
// player and an optional WAV recorder can both observe the same stream.
type multiAudioSink struct {
	sinks []audioSink
}

type audioSink interface {
	Append(apu.Sample)
}

func (m *multiAudioSink) Append(s apu.Sample) {
	for _, sink := range m.sinks {
		sink.Append(s)
	}
}
