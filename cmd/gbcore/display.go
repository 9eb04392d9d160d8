package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/owlonaut/gbcore/internal/emulator"
	"github.com/owlonaut/gbcore/internal/input"
	"github.com/owlonaut/gbcore/internal/ppu"
)

// frameSink is a VideoSink that just remembers the latest frame; Draw reads
// it once per Ebiten Draw call instead of pulling from the PPU directly.
type frameSink struct {
	latest ppu.Frame
	ready  bool
}

func (s *frameSink) Append(f ppu.Frame) {
	s.latest = f
	s.ready = true
}

// Display implements the Ebiten game interface for the Game Boy emulator.
type Display struct {
	gameboy     *emulator.Gameboy
	frames      *frameSink
	screen      *ebiten.Image
	pixels      []byte // Pre-allocated pixel buffer to avoid GC pressure
	audioPlayer *AudioPlayer
}

// NewDisplay creates a new display for the emulator. recorder is optional
// (nil when --dump-wav wasn't requested); when present it receives every
// sample alongside the live player.
func NewDisplay(gb *emulator.Gameboy, opts AudioOptions, recorder *wavRecorder) *Display {
	frames := &frameSink{}
	gb.SetVideoSink(frames)

	audioPlayer, err := NewAudioPlayer(gb.APU, opts)
	if err != nil {
		// Audio is optional - continue without it if initialization fails
		audioPlayer = nil
	} else {
		audioPlayer.Start()
	}

	switch {
	case audioPlayer != nil && recorder != nil:
		gb.SetAudioSink(&multiAudioSink{sinks: []audioSink{audioPlayer, recorder}})
	case audioPlayer != nil:
		gb.SetAudioSink(audioPlayer)
	case recorder != nil:
		gb.SetAudioSink(recorder)
	}

	return &Display{
		gameboy:     gb,
		frames:      frames,
		screen:      ebiten.NewImage(ppu.ScreenWidth, ppu.ScreenHeight),
		pixels:      make([]byte, ppu.ScreenWidth*ppu.ScreenHeight*4), // RGBA format
		audioPlayer: audioPlayer,
	}
}

// Update updates the game logic (runs one frame worth of cycles).
// This is called 60 times per second by Ebiten.
func (d *Display) Update() error {
	d.handleInput()

	// Game Boy runs at ~59.73 Hz, which is close to 60 Hz.
	// One frame = 70,224 cycles.
	d.gameboy.RunCycles(ppu.DotsPerFrame)

	if fault := d.gameboy.Fault(); fault != nil {
		return fault
	}

	return nil
}

// keyMap maps keyboard keys to Game Boy buttons.
var keyMap = map[ebiten.Key]input.Key{
	ebiten.KeyArrowUp:    input.Up,
	ebiten.KeyArrowDown:  input.Down,
	ebiten.KeyArrowLeft:  input.Left,
	ebiten.KeyArrowRight: input.Right,
	ebiten.KeyZ:          input.A,
	ebiten.KeyX:          input.B,
	ebiten.KeyEnter:      input.Start,
	ebiten.KeyShift:      input.Select,
}

// handleInput processes keyboard input and updates joypad state.
func (d *Display) handleInput() {
	for key, button := range keyMap {
		d.gameboy.UpdateKeyState(button, ebiten.IsKeyPressed(key))
	}
}

// Draw draws the game screen.
// This is called after Update.
func (d *Display) Draw(screen *ebiten.Image) {
	if d.frames.ready {
		for i, c := range d.frames.latest {
			offset := i * 4
			d.pixels[offset] = c.R
			d.pixels[offset+1] = c.G
			d.pixels[offset+2] = c.B
			d.pixels[offset+3] = 0xFF
		}
		d.screen.WritePixels(d.pixels)
	}

	screen.DrawImage(d.screen, nil)
}

// Layout returns the game screen size.
func (d *Display) Layout(_, _ int) (int, int) {
	return ppu.ScreenWidth, ppu.ScreenHeight
}
