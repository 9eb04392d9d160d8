// Package main provides the gbcore CLI application.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/owlonaut/gbcore/internal/cartridge"
	"github.com/owlonaut/gbcore/internal/disasm"
	"github.com/owlonaut/gbcore/internal/emulator"
	"github.com/owlonaut/gbcore/internal/testrom"
)

var (
	// ErrNotImplemented indicates a feature is not yet implemented.
	ErrNotImplemented = errors.New("feature not yet implemented")

	// ErrTestFailed indicates a test ROM failed.
	ErrTestFailed = errors.New("test failed")

	// ErrInvalidScale indicates the scale factor is out of valid range.
	ErrInvalidScale = errors.New("scale must be between 1 and 10")

	// ErrROMTooSmall indicates a ROM is too small to contain a valid entry point.
	ErrROMTooSmall = errors.New("ROM is too small to contain an entry point")
)

// CLI represents the command-line interface structure.
type CLI struct {
	Info   InfoCmd   `cmd:"" help:"Display cartridge information."`
	Run    RunCmd    `cmd:"" help:"Run a Game Boy ROM."`
	Test   TestCmd   `cmd:"" help:"Run a test ROM and report results."`
	Disasm DisasmCmd `cmd:"" help:"Disassemble a ROM starting at its entry point."`
}

// InfoCmd displays cartridge header information.
type InfoCmd struct {
	ROM string `arg:"" type:"existingfile" help:"Path to ROM file."`
}

// Run executes the info command.
func (c *InfoCmd) Run() error {
	// Read ROM file
	data, err := os.ReadFile(c.ROM)
	if err != nil {
		return fmt.Errorf("failed to read ROM: %w", err)
	}

	// Parse cartridge
	cart, err := cartridge.New(data)
	if err != nil {
		return fmt.Errorf("failed to load cartridge: %w", err)
	}

	// Display header information
	header := cart.Header()
	fmt.Printf("ROM Information:\n")
	fmt.Printf("  Title:          %s\n", header.GetTitle())
	fmt.Printf("  Cartridge Type: %s (0x%02X)\n", cartridge.CartridgeType(header.CartridgeType), header.CartridgeType)
	fmt.Printf("  ROM Size:       %d KiB (%d banks)\n", header.GetROMSizeBytes()/1024, header.GetROMBanks())
	fmt.Printf("  RAM Size:       %d KiB (%d banks)\n", header.GetRAMSizeBytes()/1024, header.GetRAMBanks())
	fmt.Printf("  Has Battery:    %v\n", cart.HasBattery())
	fmt.Printf("  CGB Flag:       0x%02X\n", header.CGBFlag)
	fmt.Printf("  SGB Flag:       0x%02X\n", header.SGBFlag)

	return nil
}

// RunCmd runs a Game Boy ROM.
type RunCmd struct {
	ROM   string `arg:"" type:"existingfile" help:"Path to ROM file."`
	Scale int    `help:"Display scale factor (1-10)." default:"3"`

	// Audio filter flags for debugging audio quality issues
	NoLowPass  bool `help:"Disable low-pass filter (anti-aliasing)."`
	NoHighPass bool `help:"Disable high-pass filter (DC offset removal)."`
	NoSoftClip bool `help:"Disable soft clipping (use hard clipping instead)."`
	NoDither   bool `help:"Disable triangular dithering."`

	DumpWAV string `help:"Record audio output to a WAV file on exit."`
}

// Run executes the run command.
func (c *RunCmd) Run() error {
	// Validate scale factor
	if c.Scale < 1 || c.Scale > 10 {
		return fmt.Errorf("%w: got %d", ErrInvalidScale, c.Scale)
	}

	savePath := savePathFor(c.ROM)

	gb, err := emulator.PowerOn(c.ROM, savePath)
	if err != nil {
		return fmt.Errorf("failed to power on emulator: %w", err)
	}
	defer func() {
		if err := gb.Close(); err != nil {
			slog.Error("failed to flush save data", "path", savePath, "error", err)
		}
	}()

	var recorder *wavRecorder
	if c.DumpWAV != "" {
		recorder = newWAVRecorder()
		defer func() {
			if err := recorder.Save(c.DumpWAV); err != nil {
				slog.Error("failed to save WAV dump", "path", c.DumpWAV, "error", err)
			}
		}()
	}

	// Create display with audio filter options
	display := NewDisplay(gb, AudioOptions{
		EnableLowPass:  !c.NoLowPass,
		EnableHighPass: !c.NoHighPass,
		EnableSoftClip: !c.NoSoftClip,
		EnableDither:   !c.NoDither,
	}, recorder)

	// Configure Ebiten window
	ebiten.SetWindowTitle("gbcore - Game Boy Emulator")
	ebiten.SetWindowSize(160*c.Scale, 144*c.Scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(60) // Set to 60 ticks per second (matching Game Boy ~59.73 Hz)

	// Run the emulator
	if err := ebiten.RunGame(display); err != nil {
		return fmt.Errorf("emulator error: %w", err)
	}

	return nil
}

// TestCmd runs a test ROM and reports results.
type TestCmd struct {
	ROM     string `arg:"" type:"existingfile" help:"Path to test ROM file."`
	Timeout int    `default:"30" help:"Timeout in seconds."`
	Verbose bool   `short:"v" help:"Show detailed output."`
}

// Run executes the test command.
func (c *TestCmd) Run() error {
	fmt.Printf("Running test ROM: %s\n", c.ROM)

	// Run the test ROM
	timeout := time.Duration(c.Timeout) * time.Second
	result := testrom.Run(c.ROM, timeout)

	// Display results
	fmt.Printf("Result: %s\n", result.String())

	if c.Verbose || !result.IsSuccess() {
		fmt.Printf("\nOutput:\n%s\n", result.Output)
	}

	if !result.IsSuccess() {
		return ErrTestFailed
	}

	return nil
}

// DisasmCmd disassembles a ROM starting at its entry point (0x0100) and
// writes the listing to a file.
type DisasmCmd struct {
	ROM    string `arg:"" type:"existingfile" help:"Path to ROM file."`
	Output string `default:"output.asm" help:"Path to write the disassembly."`
}

// entryPointPC is where the Game Boy's boot ROM hands off execution.
const entryPointPC = 0x0100

// Run executes the disasm command.
func (c *DisasmCmd) Run() error {
	data, err := os.ReadFile(c.ROM)
	if err != nil {
		return fmt.Errorf("failed to read ROM: %w", err)
	}
	if len(data) <= entryPointPC {
		return ErrROMTooSmall
	}

	instructions := disasm.Disassemble(data[entryPointPC:], entryPointPC)

	var sb strings.Builder
	for _, ins := range instructions {
		fmt.Fprintf(&sb, "%04X: %s\n", ins.PC, ins.Mnemonic)
	}

	if err := os.WriteFile(c.Output, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write disassembly: %w", err)
	}

	fmt.Printf("Wrote %d instructions to %s\n", len(instructions), c.Output)
	return nil
}

// savePathFor derives a battery-save path by swapping the ROM's extension
// for .sav, alongside the ROM itself.
func savePathFor(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("gbcore"),
		kong.Description("A Game Boy (DMG) emulator written in Go."),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
