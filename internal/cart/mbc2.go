package cart

import (
	"bytes"
	"encoding/gob"
)

// mbc2RAMSize is the built-in 512x4-bit RAM every MBC2 cartridge carries;
// it is never supplied externally via the header's RAM-size byte.
const mbc2RAMSize = 512

// MBC2 implements ROM banking (up to 256KB) plus the controller's
// built-in 512x4-bit RAM. Unlike the other variants, RAM is never
// external — it lives inside the mapper itself.
type MBC2 struct {
	rom []byte
	ram [mbc2RAMSize]byte // only the low nibble of each byte is meaningful

	romBank    byte // 0 remapped to 1
	ramEnabled bool
}

func NewMBC2(rom []byte) *MBC2 {
	return &MBC2{rom: rom, romBank: 1}
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		return m.rom[int(addr)&(len(m.rom)-1)]
	case addr < 0x8000:
		return m.rom[(int(m.romBank)*0x4000+int(addr-0x4000))&(len(m.rom)-1)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		return m.ram[int(addr-0xA000)&(mbc2RAMSize-1)] | 0xF0
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		// Bit 8 of the address distinguishes RAM-enable writes from
		// ROM-bank-select writes within the same 0x0000-0x3FFF window.
		if addr&0x0100 == 0 {
			m.ramEnabled = value&0x0F == 0x0A
		} else {
			m.romBank = value & 0x0F
			if m.romBank == 0 {
				m.romBank = 1
			}
		}
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		m.ram[int(addr-0xA000)&(mbc2RAMSize-1)] = value & 0x0F
	}
}

type mbc2State struct {
	RomBank    byte
	RamEnabled bool
	RAM        [mbc2RAMSize]byte
}

func (m *MBC2) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc2State{RomBank: m.romBank, RamEnabled: m.ramEnabled, RAM: m.ram})
	return buf.Bytes()
}

func (m *MBC2) LoadState(data []byte) {
	var s mbc2State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.romBank, m.ramEnabled, m.ram = s.RomBank, s.RamEnabled, s.RAM
}

func (m *MBC2) SaveRAM() []byte {
	out := make([]byte, mbc2RAMSize)
	copy(out, m.ram[:])
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	copy(m.ram[:], data)
}
