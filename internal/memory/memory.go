// Package memory implements the Game Boy memory bus and address space mapping.
package memory

import (
	"errors"
	"fmt"

	"github.com/owlonaut/gbcore/internal/cartridge"
	"github.com/owlonaut/gbcore/internal/interrupt"
	"github.com/owlonaut/gbcore/internal/timer"
)

// PPU is an interface for the Picture Processing Unit.
type PPU interface {
	ReadVRAM(addr uint16) uint8
	WriteVRAM(addr uint16, value uint8)
	ReadOAM(addr uint16) uint8
	WriteOAM(addr uint16, value uint8)
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
	Step(cycles uint8) uint8
}

// Joypad is an interface for joypad input handling.
type Joypad interface {
	Read() uint8
	Write(value uint8)
}

// APU is an interface for the Audio Processing Unit.
type APU interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
	Update(cycles uint16)
}

// Bus represents the Game Boy memory bus.
type Bus struct {
	// Cartridge (ROM and external RAM are handled by cartridge)
	cartridge cartridge.Cartridge

	// PPU for video memory and registers
	ppu PPU

	// Joypad for input handling
	joypad Joypad

	// Timer for DIV, TIMA, TMA, TAC registers
	timer *timer.Timer

	// APU for sound channel registers
	apu APU

	// Work RAM (8 KiB)
	wram [0x2000]uint8 // C000-DFFF: Work RAM

	// I/O Registers (128 bytes)
	io [0x80]uint8 // FF00-FF7F: I/O Registers

	// High RAM (127 bytes)
	hram [0x7F]uint8 // FF80-FFFE: High RAM

	// interrupts owns IE (0xFFFF) and IF (0xFF0F). Devices never call back
	// into the CPU directly: Update collects the bits each device raises
	// over one step and ORs them in here via Request.
	interrupts *interrupt.Controller

	// DMA state (Phase 3.5)
	dmaActive bool   // DMA transfer in progress
	dmaSource uint16 // DMA source address (XX00)
	dmaCycles uint16 // Remaining DMA cycles (160 total)
}

// NewBus creates a new memory bus.
func NewBus() *Bus {
	return &Bus{interrupts: interrupt.New()}
}

// SetCartridge sets the cartridge for the memory bus.
func (b *Bus) SetCartridge(cart cartridge.Cartridge) {
	b.cartridge = cart
}

// SetPPU sets the PPU for the memory bus.
func (b *Bus) SetPPU(ppu PPU) {
	b.ppu = ppu
}

// SetJoypad sets the joypad for the memory bus.
func (b *Bus) SetJoypad(joypad Joypad) {
	b.joypad = joypad
}

// SetTimer sets the timer for the memory bus.
func (b *Bus) SetTimer(t *timer.Timer) {
	b.timer = t
}

// SetAPU sets the APU for the memory bus.
func (b *Bus) SetAPU(a APU) {
	b.apu = a
}

// Interrupts returns the bus's interrupt controller, for hosts that need to
// read IE/IF directly (e.g. CPU construction, save-state snapshots).
func (b *Bus) Interrupts() *interrupt.Controller {
	return b.interrupts
}

// RequestInterrupt ORs bits into IF. Used by the emulator to report input
// events (joypad edge transitions) that happen outside of Update.
func (b *Bus) RequestInterrupt(bits uint8) {
	b.interrupts.Request(bits)
}

// Update advances the timer and PPU by cycles T-states, ORing any
// interrupt bits they raise into the interrupt controller, and returns the
// PPU's raised bits (the caller forwards these to decide whether a frame
// is ready via PPU.RequestFrame).
func (b *Bus) Update(cycles uint16) uint8 {
	var ppuBits uint8

	if b.timer != nil {
		b.interrupts.Request(b.timer.Update(cycles))
	}

	if b.ppu != nil {
		remaining := cycles
		for remaining > 0 {
			step := remaining
			if step > 0xFF {
				step = 0xFF
			}
			ppuBits |= b.ppu.Step(uint8(step))
			remaining -= step
		}
		b.interrupts.Request(ppuBits)
	}

	if b.apu != nil {
		b.apu.Update(cycles)
	}

	for i := uint16(0); i < cycles && b.dmaActive; i += 4 {
		b.StepDMA()
	}

	return ppuBits
}

// mustIndex converts addr into an index into a size-byte region starting at
// base, panicking if it falls outside — a bug in the caller's range check
// above it, not a reachable unmapped-address case (those return 0xFF
// without ever calling this). The CPU's Step recovers this panic into a
// CoreFault the same way it does an undefined opcode.
func mustIndex(addr, base uint16, size int) uint16 {
	idx := addr - base
	if int(idx) >= size {
		panic(fmt.Sprintf("memory: address 0x%04X out of range for region at 0x%04X size 0x%X", addr, base, size))
	}
	return idx
}

// Read reads a byte from the memory bus.
func (b *Bus) Read(addr uint16) uint8 {
	// During DMA transfer, only HRAM (0xFF80-0xFFFE) is accessible to CPU
	// All other reads return 0xFF (including OAM)
	if b.dmaActive && (addr < 0xFF80 || addr == 0xFFFF) {
		return 0xFF
	}

	switch {
	// ROM Bank 00 (0000-3FFF) and ROM Bank 01-NN (4000-7FFF)
	// Handled by cartridge
	case addr < 0x8000:
		if b.cartridge != nil {
			return b.cartridge.Read(addr)
		}
		return 0xFF

	// VRAM (8000-9FFF)
	case addr < 0xA000:
		if b.ppu != nil {
			return b.ppu.ReadVRAM(addr - 0x8000)
		}
		return 0xFF

	// External RAM (A000-BFFF) - Handled by cartridge
	case addr < 0xC000:
		if b.cartridge != nil {
			return b.cartridge.Read(addr)
		}
		return 0xFF

	// Work RAM Bank 0 (C000-CFFF)
	case addr < 0xD000:
		return b.wram[mustIndex(addr, 0xC000, len(b.wram))]

	// Work RAM Bank 1 (D000-DFFF)
	case addr < 0xE000:
		return b.wram[mustIndex(addr, 0xC000, len(b.wram))]

	// Echo RAM (E000-FDFF) - Mirror of C000-DDFF
	case addr < 0xFE00:
		return b.wram[mustIndex(addr, 0xE000, len(b.wram))]

	// OAM (FE00-FE9F)
	case addr < 0xFEA0:
		if b.ppu != nil {
			return b.ppu.ReadOAM(addr - 0xFE00)
		}
		return 0xFF

	// Not Usable (FEA0-FEFF)
	case addr < 0xFF00:
		return 0xFF

	// I/O Registers (FF00-FF7F)
	case addr < 0xFF80:
		return b.readIO(addr)

	// High RAM (FF80-FFFE)
	case addr < 0xFFFF:
		return b.hram[mustIndex(addr, 0xFF80, len(b.hram))]

	// Interrupt Enable Register (FFFF)
	case addr == 0xFFFF:
		return b.interrupts.ReadIE()

	default:
		return 0xFF
	}
}

// Write writes a byte to the memory bus.
func (b *Bus) Write(addr uint16, value uint8) {
	switch {
	// ROM Bank 00 & 01 (0000-7FFF) - MBC control
	// Handled by cartridge
	case addr < 0x8000:
		if b.cartridge != nil {
			b.cartridge.Write(addr, value)
		}

	// VRAM (8000-9FFF)
	case addr < 0xA000:
		if b.ppu != nil {
			b.ppu.WriteVRAM(addr-0x8000, value)
		}

	// External RAM (A000-BFFF) - Handled by cartridge
	case addr < 0xC000:
		if b.cartridge != nil {
			b.cartridge.Write(addr, value)
		}

	// Work RAM Bank 0 (C000-CFFF)
	case addr < 0xD000:
		b.wram[mustIndex(addr, 0xC000, len(b.wram))] = value

	// Work RAM Bank 1 (D000-DFFF)
	case addr < 0xE000:
		b.wram[mustIndex(addr, 0xC000, len(b.wram))] = value

	// Echo RAM (E000-FDFF) - Mirror of C000-DDFF
	case addr < 0xFE00:
		b.wram[mustIndex(addr, 0xE000, len(b.wram))] = value

	// OAM (FE00-FE9F)
	case addr < 0xFEA0:
		if b.ppu != nil {
			b.ppu.WriteOAM(addr-0xFE00, value)
		}

	// Not Usable (FEA0-FEFF)
	case addr < 0xFF00:
		// Ignore writes to unusable memory

	// I/O Registers (FF00-FF7F)
	case addr < 0xFF80:
		b.writeIO(addr, value)

	// High RAM (FF80-FFFE)
	case addr < 0xFFFF:
		b.hram[mustIndex(addr, 0xFF80, len(b.hram))] = value

	// Interrupt Enable Register (FFFF)
	case addr == 0xFFFF:
		b.interrupts.WriteIE(value)
	}
}

// readIO reads from I/O registers.
func (b *Bus) readIO(addr uint16) uint8 {
	offset := addr - 0xFF00

	// Special cases for specific registers
	switch addr {
	case 0xFF00: // Joypad (P1)
		if b.joypad != nil {
			return b.joypad.Read()
		}
		return 0xFF // No input pressed
	case 0xFF04, 0xFF05, 0xFF06, 0xFF07: // Timer registers
		if b.timer != nil {
			return b.timer.Read(addr)
		}
		return b.io[offset]
	case 0xFF0F: // IF - Interrupt flags
		return b.interrupts.ReadIF()
	case 0xFF40, 0xFF41, 0xFF42, 0xFF43, 0xFF44, 0xFF45, 0xFF47, 0xFF48, 0xFF49, 0xFF4A, 0xFF4B:
		// PPU registers (0xFF40-0xFF4B except 0xFF46)
		if b.ppu != nil {
			return b.ppu.ReadRegister(addr)
		}
		return 0xFF
	case 0xFF46: // DMA - DMA transfer
		return b.io[offset]
	default:
		if addr >= 0xFF10 && addr <= 0xFF26 || addr >= 0xFF30 && addr <= 0xFF3F {
			if b.apu != nil {
				return b.apu.Read(addr)
			}
			return 0xFF
		}
		return b.io[offset]
	}
}

// writeIO writes to I/O registers.
func (b *Bus) writeIO(addr uint16, value uint8) {
	offset := addr - 0xFF00

	// Special cases for specific registers
	switch addr {
	case 0xFF00: // Joypad (P1)
		if b.joypad != nil {
			b.joypad.Write(value)
		}
	case 0xFF04, 0xFF05, 0xFF06, 0xFF07: // Timer registers
		if b.timer != nil {
			b.timer.Write(addr, value)
		} else {
			// Fallback for DIV reset behavior
			if addr == 0xFF04 {
				b.io[offset] = 0
			} else {
				b.io[offset] = value
			}
		}
	case 0xFF0F: // IF - Interrupt flags
		b.interrupts.WriteIF(value)
	case 0xFF40, 0xFF41, 0xFF42, 0xFF43, 0xFF44, 0xFF45, 0xFF47, 0xFF48, 0xFF49, 0xFF4A, 0xFF4B:
		// PPU registers (0xFF40-0xFF4B except 0xFF46)
		if b.ppu != nil {
			b.ppu.WriteRegister(addr, value)
		}
	case 0xFF46: // DMA - DMA transfer
		// Source address is XX00; every value 0x00-0xFF is a legal DMA
		// source, OAM DMA just copies whatever lives there.
		b.dmaActive = true
		b.dmaSource = uint16(value) << 8
		b.dmaCycles = 160 // DMA takes 160 M-cycles
		b.io[offset] = value
	default:
		if addr >= 0xFF10 && addr <= 0xFF26 || addr >= 0xFF30 && addr <= 0xFF3F {
			if b.apu != nil {
				b.apu.Write(addr, value)
			}
			return
		}
		b.io[offset] = value
	}
}

// ErrROMLoadFailed indicates ROM loading failed.
var ErrROMLoadFailed = errors.New("ROM loading failed")

// LoadROM loads ROM data by creating a cartridge and attaching it to the bus.
func (b *Bus) LoadROM(rom []byte) error {
	cart, err := cartridge.New(rom)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrROMLoadFailed, err)
	}

	b.cartridge = cart
	return nil
}

// GetCartridge returns the currently loaded cartridge.
func (b *Bus) GetCartridge() cartridge.Cartridge {
	return b.cartridge
}

// Reset clears all RAM while keeping the cartridge and PPU loaded.
// Note: Cartridge RAM is not cleared as it may be battery-backed.
func (b *Bus) Reset() {
	// Clear Work RAM
	clear(b.wram[:])

	// Clear I/O registers
	clear(b.io[:])

	// Clear High RAM
	clear(b.hram[:])

	// Clear Interrupt Enable/Flags
	b.interrupts = interrupt.New()

	// Clear DMA state
	b.dmaActive = false
	b.dmaSource = 0
	b.dmaCycles = 0
}

// StepDMA advances the DMA transfer by one M-cycle.
// Returns true if DMA is still active, false if transfer is complete or inactive.
// Should be called once per M-cycle when DMA is active.
func (b *Bus) StepDMA() bool {
	if !b.dmaActive {
		return false
	}

	// Calculate which byte to transfer (160 - remaining cycles)
	byteOffset := 160 - b.dmaCycles

	// Read from source address
	srcAddr := b.dmaSource + byteOffset
	value := b.dmaRead(srcAddr)

	// Write to OAM
	if b.ppu != nil {
		b.ppu.WriteOAM(byteOffset, value)
	}

	// Decrement cycles
	b.dmaCycles--

	// Check if transfer complete
	if b.dmaCycles == 0 {
		b.dmaActive = false
		return false
	}

	return true
}

// dmaRead performs a read for DMA transfer (bypasses DMA access restriction).
func (b *Bus) dmaRead(addr uint16) uint8 {
	switch {
	// ROM Bank 00 (0000-3FFF) and ROM Bank 01-NN (4000-7FFF)
	case addr < 0x8000:
		if b.cartridge != nil {
			return b.cartridge.Read(addr)
		}
		return 0xFF

	// VRAM (8000-9FFF)
	case addr < 0xA000:
		if b.ppu != nil {
			return b.ppu.ReadVRAM(addr - 0x8000)
		}
		return 0xFF

	// External RAM (A000-BFFF)
	case addr < 0xC000:
		if b.cartridge != nil {
			return b.cartridge.Read(addr)
		}
		return 0xFF

	// Work RAM Bank 0 (C000-CFFF)
	case addr < 0xD000:
		return b.wram[addr-0xC000]

	// Work RAM Bank 1 (D000-DFFF)
	case addr < 0xE000:
		return b.wram[addr-0xC000]

	// Echo RAM (E000-FDFF)
	case addr < 0xFE00:
		return b.wram[addr-0xE000]

	default:
		return 0xFF
	}
}
