// Package cart implements cartridge header parsing and the memory bank
// controller (MBC) variants a cartridge may present to the bus.
package cart

import "log"

// Cartridge is the minimal interface the bus needs for ROM/RAM banking.
// Implementations are ROM-only or one of the four MBC variants. Addresses
// are CPU addresses; every read/write is masked to the underlying storage
// length rather than ever panicking on an out-of-range access.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000-0x7FFF) and external RAM
	// (0xA000-0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000-0x7FFF) and external RAM
	// writes (0xA000-0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize banking registers and external RAM.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM
// meant to be persisted across runs (the save-file collaborator's
// concern, not the core's).
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// NewCartridge picks an implementation based on the ROM header's
// cartridge-type byte. An unrecognized type falls back to ROM-only and is
// logged once, per the configuration-error taxonomy: the core never fails
// to load a ROM, it degrades to the closest thing it can run.
func NewCartridge(rom []byte) Cartridge {
	h, err := ParseHeader(rom)
	if err != nil {
		log.Printf("cart: %v; falling back to ROM-only", err)
		return NewROMOnly(rom)
	}
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom)
	case 0x01, 0x02, 0x03:
		return NewMBC1(rom, h.RAMSizeBytes)
	case 0x05, 0x06:
		return NewMBC2(rom)
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		return NewMBC3(rom, h.RAMSizeBytes)
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E:
		return NewMBC5(rom, h.RAMSizeBytes)
	default:
		log.Printf("cart: unsupported cartridge type %#02x (%q); falling back to ROM-only", h.CartType, h.Title)
		return NewROMOnly(rom)
	}
}
