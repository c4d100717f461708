package ppu

import "sort"

// Sprite is a normalized OAM entry: X/Y are already screen-relative
// (raw OAM X-8, Y-16), unlike the bytes stored in the 0xFE00-0xFE9F table.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// spritesOnLine scans OAM for up to 10 sprites intersecting ly, in OAM order.
func (p *PPU) spritesOnLine(ly byte) []Sprite {
	tall := p.lcdc&0x04 != 0
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40; i++ {
		base := i * 4
		y := int(p.oam[base+0]) - 16
		if int(ly) < y || int(ly) >= y+height {
			continue
		}
		out = append(out, Sprite{
			X:        int(p.oam[base+1]) - 8,
			Y:        y,
			Tile:     p.oam[base+2],
			Attr:     p.oam[base+3],
			OAMIndex: i,
		})
		if len(out) == 10 {
			break
		}
	}
	return out
}

// ComposeSpriteLine renders sprites on scanline ly over a precomputed
// background/window color-index row. It sorts by X ascending (ties broken
// by OAM index ascending) and draws in reverse order so the lowest-X sprite
// ends up on top, matching hardware's fixed-priority sprite arbitration.
//
// Each output byte packs the 2-bit sprite color index in bits 0-1 and the
// palette selector (0=OBP0, 1=OBP1) in bit 2; a zero byte means no opaque
// sprite pixel was drawn there.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	var out [160]byte
	height := 8
	if tall {
		height = 16
	}

	sorted := make([]Sprite, len(sprites))
	copy(sorted, sprites)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].OAMIndex < sorted[j].OAMIndex
	})

	for i := len(sorted) - 1; i >= 0; i-- {
		s := sorted[i]
		row := int(ly) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&0x40 != 0 { // Y-flip
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			if row >= 8 {
				tile |= 0x01
			} else {
				tile &^= 0x01
			}
			row &= 7
		}
		addr := uint16(0x8000) + uint16(tile)*16 + uint16(row)*2
		lo := mem.Read(addr)
		hi := mem.Read(addr + 1)

		for col := 0; col < 8; col++ {
			bit := byte(7 - col)
			if s.Attr&0x20 != 0 { // X-flip
				bit = byte(col)
			}
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			sx := s.X + col
			if sx < 0 || sx >= 160 {
				continue
			}
			if s.Attr&0x80 != 0 && bgci[sx] != 0 {
				continue // behind background
			}
			pal := byte(0)
			if s.Attr&0x10 != 0 {
				pal = 1
			}
			out[sx] = ci | pal<<2
		}
	}
	return out
}
