// Package bus wires the CPU-visible address space to the cartridge, work
// RAM, high RAM, and the PPU/timer/joypad/serial peripherals, mediating
// every memory access the CPU makes.
package bus

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"

	"github.com/kestrelsys/dmgcore/internal/cart"
	"github.com/kestrelsys/dmgcore/internal/joypad"
	"github.com/kestrelsys/dmgcore/internal/ppu"
	"github.com/kestrelsys/dmgcore/internal/timer"
)

// Bus mediates CPU access to every addressable resource: no subsystem
// holds a reference back to another, they are only reachable through here.
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000-0xDFFF; Echo 0xE000-0xFDFF mirrors C000-DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80-0xFFFE (127 bytes)
	hram [0x7F]byte

	ppu    *ppu.PPU
	timer  *timer.Timer
	joypad *joypad.Joypad

	ie    byte // IE at 0xFFFF
	ifReg byte // IF at 0xFF0F (lower 5 bits used)

	// Serial
	sb byte      // FF01 data
	sc byte      // FF02 control (bit7 start, bit0 clock source)
	sw io.Writer // sink for serial output

	// OAM DMA: FF46 write latches the source page; the transfer itself
	// runs 1 byte per M-cycle with a 2-cycle start delay before the first
	// byte lands.
	dma        byte
	dmaActive  bool
	dmaSrc     uint16
	dmaIndex   int
	dmaStartIn int

	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with a ROM-only cartridge for convenience.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom))
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{cart: c}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit })
	b.timer = timer.New(func(bit int) { b.ifReg |= 1 << bit })
	b.joypad = joypad.New(func(bit int) { b.ifReg |= 1 << bit })
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.timer.SetDebug(true)
	}
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// SetTimerDebug sets the timer's debug flag, overriding whatever
// GB_DEBUG_TIMER was set to at construction time. The timer produces no
// log output for the flag.
func (b *Bus) SetTimerDebug(on bool) { b.timer.SetDebug(on) }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)

	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]

	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]

	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]

	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)

	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF // unusable region, wired explicitly rather than left to the default

	case addr == 0xFF00:
		return b.joypad.Read()

	case addr == 0xFF04:
		return b.timer.DIV()
	case addr == 0xFF05:
		return b.timer.TIMA()
	case addr == 0xFF06:
		return b.timer.TMA()
	case addr == 0xFF07:
		return b.timer.TAC()

	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)

	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma

	case addr == 0xFF50:
		return 0xFF

	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)

	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return

	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return

	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
		return

	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return

	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return

	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return // unusable region, writes ignored

	case addr == 0xFF00:
		b.joypad.Select(value)
		return

	case addr == 0xFF04:
		b.timer.WriteDIV()
		return
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
		return

	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if (b.sc & 0x80) != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.ifReg |= 1 << 3
			b.sc &^= 0x80
		}
		return

	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		b.dmaStartIn = 2
		return

	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return

	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
		return

	case addr == 0xFFFF:
		b.ie = value
		return
	}
}

// Joypad button bitmasks for SetJoypadState, re-exported from the joypad
// package so callers need not import it directly for this common case.
const (
	JoypRight     = joypad.Right
	JoypLeft      = joypad.Left
	JoypUp        = joypad.Up
	JoypDown      = joypad.Down
	JoypA         = joypad.A
	JoypB         = joypad.B
	JoypSelectBtn = joypad.Select
	JoypStart     = joypad.Start
)

// SetJoypadState sets which buttons are currently pressed.
func (b *Bus) SetJoypadState(mask byte) { b.joypad.SetState(mask) }

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until
// disabled via a 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances the timer, PPU, and OAM DMA by the given number of CPU
// (base-clock) cycles.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		b.timer.Tick()
		b.ppu.Tick(1)

		if b.dmaActive {
			if b.dmaStartIn > 0 {
				b.dmaStartIn--
			} else if b.dmaIndex < 0xA0 {
				v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
				b.ppu.OAMWriteDMA(byte(b.dmaIndex), v)
				b.dmaIndex++
				if b.dmaIndex >= 0xA0 {
					b.dmaActive = false
				}
			}
		}
	}
}

type busState struct {
	WRAM       [0x2000]byte
	HRAM       [0x7F]byte
	IE, IF     byte
	SB, SC     byte
	DMA        byte
	DMAActive  bool
	DMASrc     uint16
	DMAIdx     int
	DMAStartIn int
	BootEn     bool
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg,
		SB: b.sb, SC: b.sc,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex,
		DMAStartIn: b.dmaStartIn, BootEn: b.bootEnabled,
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.ppu.SaveState())
	_ = enc.Encode(b.timer.SaveState())
	_ = enc.Encode(b.joypad.SaveState())
	if bb, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(bb.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram = s.WRAM
	b.hram = s.HRAM
	b.ie, b.ifReg = s.IE, s.IF
	b.sb, b.sc = s.SB, s.SC
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.dmaStartIn, b.bootEnabled = s.DMAStartIn, s.BootEn

	var chunk []byte
	if err := dec.Decode(&chunk); err == nil {
		b.ppu.LoadState(chunk)
	}
	if err := dec.Decode(&chunk); err == nil {
		b.timer.LoadState(chunk)
	}
	if err := dec.Decode(&chunk); err == nil {
		b.joypad.LoadState(chunk)
	}
	if err := dec.Decode(&chunk); err == nil {
		if bb, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			bb.LoadState(chunk)
		}
	}
}
