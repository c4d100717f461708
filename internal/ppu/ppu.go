// Package ppu implements the DMG scanline pixel pipeline: the mode
// state machine, VRAM/OAM storage, LCDC/STAT/palette registers, and the
// background/window/sprite compositing that produces a 160x144 RGB
// framebuffer once per scanline.
package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester requests IF bit `bit` (0:VBlank, 1:LCD STAT).
type InterruptRequester func(bit int)

// LineCapture holds the register snapshot taken when a scanline enters
// the Transfer mode, used both to drive that line's render pass and to
// let tests observe per-line window-counter behavior.
type LineCapture struct {
	WinLine          byte
	SCX, SCY, WX, WY byte
	LCDC             byte
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, palettes, and the
// scanline renderer.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	winLineCounter  byte
	capturedForLine int // ly of the last line captured+rendered this frame, -1 if none
	lineCaptures    [144]LineCapture

	bgPalette, obp0Palette, obp1Palette [4][3]byte

	framebuffer [144][160][3]byte

	req InterruptRequester
}

func New(req InterruptRequester) *PPU {
	p := &PPU{req: req, capturedForLine: -1}
	p.bgPalette = derivePalette(0)
	p.obp0Palette = derivePalette(0)
	p.obp1Palette = derivePalette(0)
	return p
}

// Read implements VRAMReader for the renderer's own internal fetch passes,
// bypassing the CPU-facing mode-lock in CPURead.
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.capturedForLine = -1
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCounter = 0
			p.capturedForLine = -1
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
		p.bgPalette = derivePalette(value)
	case addr == 0xFF48:
		p.obp0 = value
		p.obp0Palette = derivePalette(value)
	case addr == 0xFF49:
		p.obp1 = value
		p.obp1Palette = derivePalette(value)
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// OAMWriteDMA writes a single byte into OAM during DMA transfer, bypassing
// the CPU mode-lock (the bus, not the CPU, drives these writes).
func (p *PPU) OAMWriteDMA(index byte, value byte) {
	if int(index) < len(p.oam) {
		p.oam[index] = value
	}
}

// Framebuffer returns the most recently composited frame.
func (p *PPU) Framebuffer() *[144][160][3]byte { return &p.framebuffer }

// LineRegs returns the register snapshot captured for scanline y.
func (p *PPU) LineRegs(y int) LineCapture {
	if y < 0 || y >= len(p.lineCaptures) {
		return LineCapture{}
	}
	return p.lineCaptures[y]
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 {
			continue
		}
		p.dot++

		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if mode == 3 && p.ly < 144 && p.capturedForLine != int(p.ly) {
			p.renderLine(p.ly)
			p.capturedForLine = int(p.ly)
		}

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCounter = 0
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

// renderLine composites one scanline into the framebuffer. It is invoked
// once per line, at the moment that line enters Transfer mode, which is
// the only point registers are guaranteed stable for the whole line in
// this non-cycle-exact pipeline.
func (p *PPU) renderLine(ly byte) {
	bgMapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	tileData8000 := p.lcdc&0x10 != 0

	windowMapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		windowMapBase = 0x9C00
	}

	bgEnabled := p.lcdc&0x01 != 0
	windowEnabled := p.lcdc&0x20 != 0 && bgEnabled && p.wy <= ly && p.wx <= 166
	spritesEnabled := p.lcdc&0x02 != 0

	var bgci [160]byte
	if bgEnabled {
		bgci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)
	}

	var winLine byte
	if windowEnabled {
		winLine = p.winLineCounter
		wxStart := int(p.wx) - 7
		winOut := RenderWindowScanlineUsingFetcher(p, windowMapBase, tileData8000, wxStart, winLine)
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bgci[x] = winOut[x]
		}
		p.winLineCounter++
	}

	p.lineCaptures[ly] = LineCapture{
		WinLine: winLine,
		SCX:     p.scx, SCY: p.scy, WX: p.wx, WY: p.wy,
		LCDC: p.lcdc,
	}

	var spriteOut [160]byte
	if spritesEnabled {
		tall := p.lcdc&0x04 != 0
		sprites := p.spritesOnLine(ly)
		spriteOut = ComposeSpriteLine(p, sprites, ly, bgci, tall)
	}

	for x := 0; x < 160; x++ {
		if sp := spriteOut[x]; sp&0x03 != 0 {
			ci := sp & 0x03
			if sp&0x04 != 0 {
				p.framebuffer[ly][x] = p.obp1Palette[ci]
			} else {
				p.framebuffer[ly][x] = p.obp0Palette[ci]
			}
			continue
		}
		ci := byte(0)
		if bgEnabled {
			ci = bgci[x] & 0x03
		}
		p.framebuffer[ly][x] = p.bgPalette[ci]
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

type ppuState struct {
	VRAM                          [0x2000]byte
	OAM                           [0xA0]byte
	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1, WY, WX       byte
	Dot                           int
	WinLineCounter                byte
	Framebuffer                   [144][160][3]byte
}

func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	s := ppuState{
		VRAM: p.vram, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, WinLineCounter: p.winLineCounter, Framebuffer: p.framebuffer,
	}
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.oam = s.VRAM, s.OAM
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.winLineCounter, p.framebuffer = s.Dot, s.WinLineCounter, s.Framebuffer
	p.bgPalette = derivePalette(p.bgp)
	p.obp0Palette = derivePalette(p.obp0)
	p.obp1Palette = derivePalette(p.obp1)
	p.capturedForLine = -1
}
